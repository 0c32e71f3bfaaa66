// Package report builds the scheduled daily, weekly and monthly traffic
// reports and sends them to the notification sink.
package report

import (
	"context"
	"fmt"

	"github.com/timfallmk/traffic-watcher/internal/notify"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

// Kind identifies a report.
type Kind string

const (
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
)

// ParseKind accepts "daily", "weekly" or "monthly".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Daily, Weekly, Monthly:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown report %q (want daily, weekly or monthly)", s)
	}
}

// Breakdown sizes.
const (
	RecentDays   = 7
	RecentMonths = 3
)

// Source is what reports read. *traffic.Engine satisfies it.
type Source interface {
	TodayTotal(ctx context.Context, iface string) (traffic.Usage, error)
	YesterdayTotal(ctx context.Context, iface string) (traffic.Usage, error)
	ThisWeekTotal(ctx context.Context, iface string) (traffic.Usage, error)
	ThisMonthTotal(ctx context.Context, iface string) (traffic.Usage, error)
	RecentDays(ctx context.Context, iface string, n int) ([]traffic.DayEntry, error)
	RecentMonths(ctx context.Context, iface string, n int) ([]traffic.MonthEntry, error)
}

// Reporter reads current totals and formats them. It holds no state.
type Reporter struct {
	source      Source
	sink        notify.Sink
	iface       string
	destination string
}

func NewReporter(source Source, sink notify.Sink, iface, destination string) *Reporter {
	return &Reporter{source: source, sink: sink, iface: iface, destination: destination}
}

// Build renders the report of the given kind.
func (r *Reporter) Build(ctx context.Context, kind Kind) (string, error) {
	switch kind {
	case Daily:
		return r.BuildDaily(ctx)
	case Weekly:
		return r.BuildWeekly(ctx)
	case Monthly:
		return r.BuildMonthly(ctx)
	default:
		return "", fmt.Errorf("unknown report %q", kind)
	}
}

// Send builds and delivers the report of the given kind.
func (r *Reporter) Send(ctx context.Context, kind Kind) error {
	text, err := r.Build(ctx, kind)
	if err != nil {
		return fmt.Errorf("build %s report: %w", kind, err)
	}
	if err := r.sink.Send(ctx, r.destination, text); err != nil {
		return fmt.Errorf("send %s report: %w", kind, err)
	}
	return nil
}

func (r *Reporter) BuildDaily(ctx context.Context) (string, error) {
	today, err := r.source.TodayTotal(ctx, r.iface)
	if err != nil {
		return "", err
	}
	yesterday, err := r.source.YesterdayTotal(ctx, r.iface)
	if err != nil {
		return "", err
	}
	return DailyText(yesterday, today), nil
}

func (r *Reporter) BuildWeekly(ctx context.Context) (string, error) {
	week, err := r.source.ThisWeekTotal(ctx, r.iface)
	if err != nil {
		return "", err
	}
	days, err := r.source.RecentDays(ctx, r.iface, RecentDays)
	if err != nil {
		return "", err
	}
	return WeeklyText(week, days), nil
}

func (r *Reporter) BuildMonthly(ctx context.Context) (string, error) {
	month, err := r.source.ThisMonthTotal(ctx, r.iface)
	if err != nil {
		return "", err
	}
	months, err := r.source.RecentMonths(ctx, r.iface, RecentMonths)
	if err != nil {
		return "", err
	}
	return MonthlyText(month, months), nil
}

func (r *Reporter) SendDaily(ctx context.Context) error   { return r.Send(ctx, Daily) }
func (r *Reporter) SendWeekly(ctx context.Context) error  { return r.Send(ctx, Weekly) }
func (r *Reporter) SendMonthly(ctx context.Context) error { return r.Send(ctx, Monthly) }
