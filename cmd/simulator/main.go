package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timfallmk/traffic-watcher/internal/alert"
	"github.com/timfallmk/traffic-watcher/internal/config"
	"github.com/timfallmk/traffic-watcher/internal/format"
	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/report"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

// TickInterval matches the daemon's alert check schedule.
const TickInterval = 5 * time.Minute

type options struct {
	cfg     *config.Config
	start   time.Time
	days    int
	dailyGB float64
	jitter  float64
	seed    uint64
	reports bool
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		days       = flag.Int("days", 7, "Number of days to replay")
		dailyGB    = flag.Float64("volume", 20, "Average traffic per day in GB")
		jitter     = flag.Float64("jitter", 0.3, "Random variation per tick (0-1)")
		seed       = flag.Uint64("seed", 1, "Random seed")
		startDate  = flag.String("start", "", "First simulated day, YYYY-MM-DD (default today)")
		reports    = flag.Bool("reports", true, "Print scheduled reports")
	)
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	start, err := parseStart(*startDate, time.Now())
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}

	opts := options{
		cfg:     cfg,
		start:   start,
		days:    *days,
		dailyGB: *dailyGB,
		jitter:  *jitter,
		seed:    *seed,
		reports: *reports,
	}
	if err := run(context.Background(), os.Stdout, opts); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}

func parseStart(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// summary is what a finished run reports.
type summary struct {
	ticks   int
	alerts  int
	reports int
	rx, tx  uint64
}

func run(ctx context.Context, w io.Writer, opts options) error {
	if opts.days <= 0 {
		return fmt.Errorf("days must be positive, got %d", opts.days)
	}
	if opts.jitter < 0 || opts.jitter > 1 {
		return fmt.Errorf("jitter must be between 0 and 1, got %v", opts.jitter)
	}

	cfg := opts.cfg
	clock := &simClock{now: opts.start}
	source := newSynthSource(cfg.Interface, opts.start)
	gen := newGenerator(config.ThresholdBytes(opts.dailyGB), opts.jitter, opts.seed)
	sink := &printSink{w: w, clock: clock}
	dest := cfg.Telegram.ChatID

	engine := traffic.NewEngine(source, traffic.WithNow(clock.Now), traffic.WithLiveSeconds(cfg.Collector.LiveSampleSeconds))
	alerts := alert.NewEngine(engine, sink, alert.NewState(), cfg.Interface, dest, alert.Thresholds{
		Daily:   config.ThresholdBytes(cfg.Thresholds.DailyGB),
		Weekly:  config.ThresholdBytes(cfg.Thresholds.WeeklyGB),
		Monthly: config.ThresholdBytes(cfg.Thresholds.MonthlyGB),
	}, alert.WithClock(clock), alert.WithLogger(logging.Discard()))
	reporter := report.NewReporter(engine, sink, cfg.Interface, dest)

	var due []*dueReport
	if opts.reports {
		var err error
		due, err = reportSchedules(cfg.Schedule, opts.start)
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(w, "📡 Traffic Watcher Simulator")
	fmt.Fprintln(w, "============================")
	fmt.Fprintf(w, "Interface: %s | Days: %d | Volume: %s/day | Limits: %s / %s / %s\n\n",
		cfg.Interface, opts.days, format.Bytes(config.ThresholdBytes(opts.dailyGB)),
		format.Bytes(alerts.Thresholds().Daily), format.Bytes(alerts.Thresholds().Weekly), format.Bytes(alerts.Thresholds().Monthly))

	var sum summary
	end := opts.start.AddDate(0, 0, opts.days)
	for t := opts.start; t.Before(end); t = t.Add(TickInterval) {
		if err := ctx.Err(); err != nil {
			return err
		}
		clock.Set(t)

		rx, tx := gen.next()
		source.record(t, rx, tx, TickInterval)
		sum.rx += rx
		sum.tx += tx
		sum.ticks++

		for _, d := range due {
			for !d.next.After(t) {
				if err := reporter.Send(ctx, d.kind); err != nil {
					fmt.Fprintf(w, "report %s failed: %v\n", d.kind, err)
				} else {
					sum.reports++
				}
				d.next = d.schedule.Next(d.next)
			}
		}

		sum.alerts += len(alerts.Tick(ctx))
	}

	fmt.Fprintln(w, "Simulation completed!")
	fmt.Fprintf(w, "Ticks: %d | Alerts fired: %d | Reports: %d\n", sum.ticks, sum.alerts, sum.reports)
	fmt.Fprintf(w, "Replayed: ↓%s ↑%s\n", format.Bytes(sum.rx), format.Bytes(sum.tx))
	return nil
}

type dueReport struct {
	kind     report.Kind
	schedule cron.Schedule
	next     time.Time
}

func reportSchedules(sc config.ScheduleConfig, start time.Time) ([]*dueReport, error) {
	specs := []struct {
		kind report.Kind
		spec string
	}{
		{report.Daily, sc.DailyReport},
		{report.Weekly, sc.WeeklyReport},
		{report.Monthly, sc.MonthlyReport},
	}

	out := make([]*dueReport, 0, len(specs))
	for _, s := range specs {
		schedule, err := cron.ParseStandard(s.spec)
		if err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", s.kind, s.spec, err)
		}
		// Next is strictly after its argument; step back so start itself can match.
		out = append(out, &dueReport{kind: s.kind, schedule: schedule, next: schedule.Next(start.Add(-time.Second))})
	}
	return out, nil
}

// printSink writes each notification under the simulated time it was sent.
type printSink struct {
	w     io.Writer
	clock *simClock
}

func (s *printSink) Send(_ context.Context, destination, text string) error {
	if destination == "" {
		destination = "-"
	}
	_, err := fmt.Fprintf(s.w, "── %s → %s ──\n%s\n\n", s.clock.Now().Format("2006-01-02 15:04"), destination, text)
	return err
}
