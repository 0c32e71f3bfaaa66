// Package scheduler runs the alert check and the report jobs on cron
// expressions.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timfallmk/traffic-watcher/internal/logging"
)

// AlertCheckSpec is the fixed alert check cadence.
const AlertCheckSpec = "*/5 * * * *"

// Job names used by the daemon.
const (
	AlertCheckJob    = "alert-check"
	DailyReportJob   = "daily-report"
	WeeklyReportJob  = "weekly-report"
	MonthlyReportJob = "monthly-report"
)

// Entry describes a registered job.
type Entry struct {
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
	Name string    `json:"name"`
	Spec string    `json:"spec"`
}

type job struct {
	run  func(ctx context.Context)
	spec string
	id   cron.EntryID
}

// Scheduler wraps robfig/cron with named, replaceable jobs. A job that is
// still running when its next slot comes up is skipped, and a panicking job
// is logged and recovered.
type Scheduler struct {
	cron   *cron.Cron
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]*job
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	loc *time.Location
}

// WithLocation evaluates specs in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

func New(logger *logging.Logger, opts ...Option) *Scheduler {
	o := options{loc: time.Local}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.WithComponent("scheduler")
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(o.loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
}

// Add registers fn under name on a standard five-field spec. A job already
// registered under name is replaced.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context)) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old.id)
	}

	j := &job{run: fn, spec: spec}
	j.id = s.cron.Schedule(schedule, cron.FuncJob(func() {
		start := time.Now()
		s.logger.Debug("job started", "job", name)
		fn(s.jobContext())
		s.logger.Debug("job finished", "job", name, "duration", time.Since(start))
	}))
	s.jobs[name] = j
	return nil
}

// Remove unregisters name. Unknown names are ignored.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		s.cron.Remove(j.id)
		delete(s.jobs, name)
	}
}

// RunNow runs name synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no job named %q", name)
	}
	j.run(ctx)
	return nil
}

// Entries lists registered jobs sorted by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.jobs))
	for name, j := range s.jobs {
		e := s.cron.Entry(j.id)
		out = append(out, Entry{Name: name, Spec: j.spec, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Start begins scheduling. A stopped scheduler can be started again; jobs then
// get a fresh context.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.Entries()))
}

// Stop halts scheduling and cancels the context handed to jobs, then waits
// for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// cronLogger adapts the slog-backed logger to cron.Logger. Cron's routine
// info messages go out at debug level.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, normalize(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append(normalize(keysAndValues), "error", err)
	l.logger.Error(msg, args...)
}

// normalize turns time values into RFC3339 strings the way cron's own
// logger prints them.
func normalize(kv []interface{}) []interface{} {
	out := make([]interface{}, len(kv))
	for i, v := range kv {
		if t, ok := v.(time.Time); ok {
			out[i] = t.Format(time.RFC3339)
			continue
		}
		out[i] = v
	}
	return out
}
