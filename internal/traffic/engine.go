// Package traffic derives the hourly, daily, weekly and monthly views and the
// current-period totals from the collector's raw samples.
package traffic

import (
	"context"
	"time"

	"github.com/timfallmk/traffic-watcher/internal/stats"
)

// Query windows.
const (
	HourlyWindow  = 24
	DailyWindow   = 30
	WeeklyDays    = 90
	WeeklyBuckets = 12
	MonthlyWindow = 12
	RollingDays   = 7
)

const dateLayout = "2006-01-02"

// Engine answers aggregation queries. Every call goes to the source; nothing
// is cached, so concurrent callers are independent.
type Engine struct {
	source      stats.Source
	now         func() time.Time
	liveSeconds int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLiveSeconds sets the live sampling window.
func WithLiveSeconds(seconds int) Option {
	return func(e *Engine) { e.liveSeconds = seconds }
}

// WithNow replaces the clock that decides which samples belong to the current
// day and month and timestamps live measurements.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an engine reading from source.
func NewEngine(source stats.Source, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		now:         time.Now,
		liveSeconds: 2,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Summary returns the collector's all-time totals for iface.
func (e *Engine) Summary(ctx context.Context, iface string) (Summary, error) {
	info, err := e.source.Info(ctx, iface)
	if err != nil {
		return Summary{}, err
	}
	name := info.Name
	if name == "" {
		name = iface
	}
	return Summary{
		Interface: name,
		Alias:     info.Alias,
		Created:   info.Created,
		Updated:   info.Updated,
		Traffic:   SummaryTraffic{Total: NewUsage(info.TotalRx, info.TotalTx)},
	}, nil
}

// Hourly returns the trailing 24 hours.
func (e *Engine) Hourly(ctx context.Context, iface string) (Hourly, error) {
	series, err := e.source.Query(ctx, iface, stats.Hour, HourlyWindow)
	if err != nil {
		return Hourly{}, err
	}
	hours := make([]HourEntry, 0, len(series))
	for _, s := range series {
		hours = append(hours, HourEntry{
			Date:  s.PeriodStart.Format(dateLayout),
			Hour:  s.PeriodStart.Hour(),
			Usage: NewUsage(s.Rx, s.Tx),
		})
	}
	return Hourly{Interface: iface, Hours: hours}, nil
}

// Daily returns the trailing 30 days.
func (e *Engine) Daily(ctx context.Context, iface string) (Daily, error) {
	series, err := e.source.Query(ctx, iface, stats.Day, DailyWindow)
	if err != nil {
		return Daily{}, err
	}
	return Daily{Interface: iface, Days: dayEntries(series)}, nil
}

// Weekly folds the trailing 90 days into Monday-aligned weeks and returns
// the newest 12.
func (e *Engine) Weekly(ctx context.Context, iface string) (Weekly, error) {
	series, err := e.source.Query(ctx, iface, stats.Day, WeeklyDays)
	if err != nil {
		return Weekly{}, err
	}
	weeks := FoldWeeks(series)
	if len(weeks) > WeeklyBuckets {
		weeks = weeks[len(weeks)-WeeklyBuckets:]
	}
	return Weekly{Interface: iface, Weeks: weeks}, nil
}

// Monthly returns the trailing 12 months.
func (e *Engine) Monthly(ctx context.Context, iface string) (Monthly, error) {
	series, err := e.source.Query(ctx, iface, stats.Month, MonthlyWindow)
	if err != nil {
		return Monthly{}, err
	}
	months := make([]MonthEntry, 0, len(series))
	for _, s := range series {
		months = append(months, MonthEntry{
			Date:  s.PeriodStart.Format("2006-01"),
			Year:  s.PeriodStart.Year(),
			Month: int(s.PeriodStart.Month()),
			Usage: NewUsage(s.Rx, s.Tx),
		})
	}
	return Monthly{Interface: iface, Months: months}, nil
}

// TodayTotal is today's daily sample, zero before the collector has a row
// for today.
func (e *Engine) TodayTotal(ctx context.Context, iface string) (Usage, error) {
	series, err := e.source.Query(ctx, iface, stats.Day, 1)
	if err != nil {
		return Usage{}, err
	}
	return dayTotal(series, e.now()), nil
}

// YesterdayTotal is the daily sample for the day before today, zero when the
// collector has no row for it.
func (e *Engine) YesterdayTotal(ctx context.Context, iface string) (Usage, error) {
	series, err := e.source.Query(ctx, iface, stats.Day, 2)
	if err != nil {
		return Usage{}, err
	}
	return dayTotal(series, e.now().AddDate(0, 0, -1)), nil
}

// ThisWeekTotal sums the trailing seven daily samples. It is a rolling
// window and does not follow the Monday alignment of Weekly.
func (e *Engine) ThisWeekTotal(ctx context.Context, iface string) (Usage, error) {
	series, err := e.source.Query(ctx, iface, stats.Day, RollingDays)
	if err != nil {
		return Usage{}, err
	}
	return NewUsage(series.Sum()), nil
}

// ThisMonthTotal is the current month's sample, zero before the collector has
// a row for it.
func (e *Engine) ThisMonthTotal(ctx context.Context, iface string) (Usage, error) {
	series, err := e.source.Query(ctx, iface, stats.Month, 1)
	if err != nil {
		return Usage{}, err
	}
	last, ok := series.Last()
	if !ok || !sameMonth(last.PeriodStart, e.now()) {
		return NewUsage(0, 0), nil
	}
	return NewUsage(last.Rx, last.Tx), nil
}

// RecentDays returns the newest n daily entries, oldest first.
func (e *Engine) RecentDays(ctx context.Context, iface string, n int) ([]DayEntry, error) {
	series, err := e.source.Query(ctx, iface, stats.Day, n)
	if err != nil {
		return nil, err
	}
	return dayEntries(series), nil
}

// RecentMonths returns the newest n monthly entries, oldest first.
func (e *Engine) RecentMonths(ctx context.Context, iface string, n int) ([]MonthEntry, error) {
	m, err := e.Monthly(ctx, iface)
	if err != nil {
		return nil, err
	}
	if len(m.Months) > n {
		return m.Months[len(m.Months)-n:], nil
	}
	return m.Months, nil
}

// Live samples the current bandwidth. It never fails.
func (e *Engine) Live(ctx context.Context, iface string) Live {
	rate := e.source.LiveRate(ctx, iface, e.liveSeconds)
	return Live{Rx: rate.Rx, Tx: rate.Tx, Timestamp: e.now().UTC()}
}

// LiveSeconds reports the live sampling window.
func (e *Engine) LiveSeconds() int {
	return e.liveSeconds
}

// Interfaces lists the collector's interfaces. It never fails.
func (e *Engine) Interfaces(ctx context.Context) []string {
	return e.source.ListInterfaces(ctx)
}

func dayEntries(series stats.IntervalSeries) []DayEntry {
	days := make([]DayEntry, 0, len(series))
	for _, s := range series {
		days = append(days, DayEntry{
			Date:  s.PeriodStart.Format(dateLayout),
			Usage: NewUsage(s.Rx, s.Tx),
		})
	}
	return days
}

// dayTotal finds the sample dated on day's calendar date. Dates are compared
// in the sample's location, which is where the collector buckets its rows.
func dayTotal(series stats.IntervalSeries, day time.Time) Usage {
	for i := len(series) - 1; i >= 0; i-- {
		s := series[i]
		y, m, d := s.PeriodStart.Date()
		ty, tm, td := day.In(s.PeriodStart.Location()).Date()
		if y == ty && m == tm && d == td {
			return NewUsage(s.Rx, s.Tx)
		}
	}
	return NewUsage(0, 0)
}

func sameMonth(periodStart, now time.Time) bool {
	y, m, _ := periodStart.Date()
	ny, nm, _ := now.In(periodStart.Location()).Date()
	return y == ny && m == nm
}
