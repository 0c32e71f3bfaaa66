package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/timfallmk/traffic-watcher/internal/stats"
)

// Day builds a daily sample for the given date.
func Day(year int, month time.Month, day int, rx, tx uint64) stats.TrafficSample {
	return stats.TrafficSample{
		PeriodStart: time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		Rx:          rx,
		Tx:          tx,
	}
}

// Hour builds an hourly sample.
func Hour(year int, month time.Month, day, hour int, rx, tx uint64) stats.TrafficSample {
	return stats.TrafficSample{
		PeriodStart: time.Date(year, month, day, hour, 0, 0, 0, time.UTC),
		Rx:          rx,
		Tx:          tx,
	}
}

// Month builds a monthly sample.
func Month(year int, month time.Month, rx, tx uint64) stats.TrafficSample {
	return stats.TrafficSample{
		PeriodStart: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		Rx:          rx,
		Tx:          tx,
	}
}

// Days builds consecutive daily samples starting at start, one per value,
// with the value split as rx=v and tx=0.
func Days(start time.Time, values ...uint64) stats.IntervalSeries {
	series := make(stats.IntervalSeries, 0, len(values))
	for i, v := range values {
		series = append(series, stats.TrafficSample{
			PeriodStart: start.AddDate(0, 0, i),
			Rx:          v,
		})
	}
	return series
}

// FakeSource is a deterministic stats.Source. Queries return the newest
// window samples of the configured series, like the real collector.
type FakeSource struct {
	Details   stats.InterfaceInfo
	InfoErr   error
	QueryHook func(g stats.Granularity, window int) error
	series    map[stats.Granularity]stats.IntervalSeries
	errs      map[stats.Granularity]error
	calls     map[stats.Granularity]int
	windows   map[stats.Granularity][]int
	Live      stats.LiveRate
	Ifaces    []string
	mu        sync.Mutex
}

// NewFakeSource returns an empty source for iface.
func NewFakeSource(iface string) *FakeSource {
	return &FakeSource{
		series:  make(map[stats.Granularity]stats.IntervalSeries),
		errs:    make(map[stats.Granularity]error),
		calls:   make(map[stats.Granularity]int),
		windows: make(map[stats.Granularity][]int),
		Details: stats.InterfaceInfo{Name: iface},
		Live:    stats.ZeroLiveRate(),
		Ifaces:  []string{iface},
	}
}

// SetSeries replaces the samples returned for g.
func (f *FakeSource) SetSeries(g stats.Granularity, series stats.IntervalSeries) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.series[g] = series
}

// SetError makes every query of g fail with err. A nil err clears it.
func (f *FakeSource) SetError(g stats.Granularity, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, g)
		return
	}
	f.errs[g] = err
}

// Calls reports how many queries of g were made.
func (f *FakeSource) Calls(g stats.Granularity) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[g]
}

// Windows reports the window sizes requested for g, in call order.
func (f *FakeSource) Windows(g stats.Granularity) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.windows[g]...)
}

func (f *FakeSource) Info(_ context.Context, iface string) (stats.InterfaceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InfoErr != nil {
		return stats.InterfaceInfo{}, &stats.CollectorError{Op: "info", Interface: iface, Err: f.InfoErr}
	}
	return f.Details, nil
}

func (f *FakeSource) Query(_ context.Context, iface string, g stats.Granularity, window int) (stats.IntervalSeries, error) {
	f.mu.Lock()
	f.calls[g]++
	f.windows[g] = append(f.windows[g], window)
	hook := f.QueryHook
	err := f.errs[g]
	series := f.series[g]
	f.mu.Unlock()

	if hook != nil {
		if hookErr := hook(g, window); hookErr != nil {
			err = hookErr
		}
	}
	if err != nil {
		return nil, &stats.CollectorError{Op: "query " + g.String(), Interface: iface, Err: err}
	}
	if len(series) > window {
		series = series[len(series)-window:]
	}
	out := make(stats.IntervalSeries, len(series))
	copy(out, series)
	return out, nil
}

func (f *FakeSource) LiveRate(context.Context, string, int) stats.LiveRate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Live
}

func (f *FakeSource) ListInterfaces(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.Ifaces...)
}

// ManualClock is a clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Message is one delivery captured by RecordingSink.
type Message struct {
	Destination string
	Text        string
}

// RecordingSink captures notifications instead of delivering them.
type RecordingSink struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (s *RecordingSink) Send(_ context.Context, destination, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Destination: destination, Text: text})
	return s.Err
}

// Messages returns a copy of everything sent so far, including failed sends.
func (s *RecordingSink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
