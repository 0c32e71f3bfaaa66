package alert

import (
	"context"
	"fmt"
	"sync"

	"github.com/timfallmk/traffic-watcher/internal/format"
	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/notify"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

// Aggregator supplies the current-period totals. *traffic.Engine satisfies it.
type Aggregator interface {
	TodayTotal(ctx context.Context, iface string) (traffic.Usage, error)
	ThisWeekTotal(ctx context.Context, iface string) (traffic.Usage, error)
	ThisMonthTotal(ctx context.Context, iface string) (traffic.Usage, error)
}

// Alert is one threshold crossing.
type Alert struct {
	Err       error
	Kind      Kind
	PeriodKey string
	Message   string
	Usage     traffic.Usage
	Limit     uint64
}

// Delivered reports whether the sink accepted the message.
func (a Alert) Delivered() bool {
	return a.Err == nil
}

// Observer is told about each evaluation. Metrics hook in here.
type Observer interface {
	AlertFired(kind string, delivered bool)
	AlertCheckFailed(kind string)
}

// Engine evaluates thresholds on each Tick.
type Engine struct {
	agg         Aggregator
	sink        notify.Sink
	state       *State
	clock       Clock
	logger      *logging.Logger
	events      *logging.EventLogger
	observer    Observer
	iface       string
	destination string

	mu         sync.RWMutex
	thresholds Thresholds
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l.WithComponent("alert") }
}

func WithEventLogger(el *logging.EventLogger) Option {
	return func(e *Engine) { e.events = el }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine builds an engine for iface that sends to destination through sink.
// state is owned by the caller so that it can outlive engine rebuilds.
func NewEngine(agg Aggregator, sink notify.Sink, state *State, iface, destination string, thresholds Thresholds, opts ...Option) *Engine {
	e := &Engine{
		agg:         agg,
		sink:        sink,
		state:       state,
		clock:       SystemClock{},
		logger:      logging.Discard(),
		iface:       iface,
		destination: destination,
		thresholds:  thresholds,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetThresholds swaps the limits used by later ticks. Stored period keys are
// kept.
func (e *Engine) SetThresholds(t Thresholds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = t
}

func (e *Engine) Thresholds() Thresholds {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.thresholds
}

// State returns the engine's alert state.
func (e *Engine) State() *State {
	return e.state
}

// Tick checks every kind once and returns the alerts it fired. A failure to
// compute one kind's total is logged and does not stop the others.
func (e *Engine) Tick(ctx context.Context) []Alert {
	now := e.clock.Now()
	thresholds := e.Thresholds()

	var fired []Alert
	for _, kind := range Kinds {
		a, ok := e.check(ctx, thresholds.For(kind), PeriodKey(kind, now))
		if ok {
			fired = append(fired, a)
		}
	}
	return fired
}

func (e *Engine) check(ctx context.Context, th Threshold, key string) (Alert, bool) {
	usage, err := e.current(ctx, th.Kind)
	if err != nil {
		e.logger.Warn("threshold check failed", "kind", string(th.Kind), "error", err)
		if e.events != nil {
			e.events.LogCollector(logging.LevelWarn, "threshold check failed", e.iface, string(th.Kind), err)
		}
		if e.observer != nil {
			e.observer.AlertCheckFailed(string(th.Kind))
		}
		return Alert{}, false
	}

	if th.LimitBytes == 0 || usage.Total() <= th.LimitBytes {
		return Alert{}, false
	}
	if !e.state.Claim(th.Kind, key) {
		return Alert{}, false
	}

	a := Alert{
		Kind:      th.Kind,
		PeriodKey: key,
		Usage:     usage,
		Limit:     th.LimitBytes,
		Message:   Message(th.Kind, usage, th.LimitBytes),
	}
	a.Err = e.sink.Send(ctx, e.destination, a.Message)

	level := logging.LevelInfo
	if a.Err != nil {
		level = logging.LevelError
		e.logger.Error("alert delivery failed", "kind", string(th.Kind), "period", key, "error", a.Err)
	} else {
		e.logger.Info("alert sent", "kind", string(th.Kind), "period", key,
			"total", usage.TotalFormatted(), "limit", format.Bytes(th.LimitBytes))
	}
	if e.events != nil {
		e.events.LogAlert(level, "threshold exceeded", string(th.Kind), key, usage.Total(), th.LimitBytes, a.Err)
	}
	if e.observer != nil {
		e.observer.AlertFired(string(th.Kind), a.Err == nil)
	}
	return a, true
}

func (e *Engine) current(ctx context.Context, k Kind) (traffic.Usage, error) {
	switch k {
	case Daily:
		return e.agg.TodayTotal(ctx, e.iface)
	case Weekly:
		return e.agg.ThisWeekTotal(ctx, e.iface)
	case Monthly:
		return e.agg.ThisMonthTotal(ctx, e.iface)
	default:
		return traffic.Usage{}, fmt.Errorf("unknown alert kind %q", k)
	}
}

// Message renders the alert text for k.
func Message(k Kind, usage traffic.Usage, limit uint64) string {
	var subject string
	switch k {
	case Daily:
		subject = "Today's usage"
	case Weekly:
		subject = "This week's usage"
	default:
		subject = "This month's usage"
	}

	return fmt.Sprintf("⚠️ *%s Traffic Alert!*\n\n"+
		"%s has exceeded %s!\n\n"+
		"Current: %s\n"+
		"📥 Download: %s\n"+
		"📤 Upload: %s",
		k.Title(), subject, format.Bytes(limit),
		usage.TotalFormatted(), usage.RxFormatted, usage.TxFormatted)
}
