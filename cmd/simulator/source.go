package main

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/timfallmk/traffic-watcher/internal/format"
	"github.com/timfallmk/traffic-watcher/internal/stats"
)

// rxShare is the fraction of generated traffic that is download.
const rxShare = 0.85

// simClock is advanced by the replay loop.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// generator yields per-tick volumes around a daily average.
type generator struct {
	perTick float64
	jitter  float64
	rng     *rand.Rand
}

func newGenerator(dailyBytes uint64, jitter float64, seed uint64) *generator {
	ticksPerDay := float64(24 * time.Hour / TickInterval)
	return &generator{
		perTick: float64(dailyBytes) / ticksPerDay,
		jitter:  jitter,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (g *generator) next() (rx, tx uint64) {
	v := g.perTick
	if g.jitter > 0 {
		v *= 1 + g.jitter*(2*g.rng.Float64()-1)
	}
	rx = uint64(v * rxShare)
	tx = uint64(v) - rx
	return rx, tx
}

// synthSource is an in-memory collector fed by the replay loop. It keeps
// hour, day and month buckets the way vnstat does.
type synthSource struct {
	mu      sync.Mutex
	iface   string
	created time.Time
	updated time.Time
	series  map[stats.Granularity]stats.IntervalSeries
	live    stats.LiveRate
	totalRx uint64
	totalTx uint64
}

func newSynthSource(iface string, created time.Time) *synthSource {
	return &synthSource{
		iface:   iface,
		created: created,
		series:  make(map[stats.Granularity]stats.IntervalSeries),
		live:    stats.ZeroLiveRate(),
	}
}

func bucketStart(g stats.Granularity, t time.Time) time.Time {
	y, m, d := t.Date()
	switch g {
	case stats.Hour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
	case stats.Month:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

// record adds rx/tx bytes transferred over span ending at t.
func (s *synthSource) record(t time.Time, rx, tx uint64, span time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range []stats.Granularity{stats.Hour, stats.Day, stats.Month} {
		start := bucketStart(g, t)
		series := s.series[g]
		if n := len(series); n > 0 && series[n-1].PeriodStart.Equal(start) {
			series[n-1].Rx += rx
			series[n-1].Tx += tx
		} else {
			series = append(series, stats.TrafficSample{PeriodStart: start, Rx: rx, Tx: tx})
		}
		s.series[g] = series
	}

	s.totalRx += rx
	s.totalTx += tx
	s.updated = t

	secs := span.Seconds()
	s.live = stats.LiveRate{
		Rx: format.Rate(float64(rx) * 8 / secs),
		Tx: format.Rate(float64(tx) * 8 / secs),
	}
}

func (s *synthSource) Info(_ context.Context, iface string) (stats.InterfaceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stats.InterfaceInfo{
		Name:    s.iface,
		Created: s.created,
		Updated: s.updated,
		TotalRx: s.totalRx,
		TotalTx: s.totalTx,
	}, nil
}

func (s *synthSource) Query(_ context.Context, _ string, g stats.Granularity, window int) (stats.IntervalSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.series[g]
	if window > 0 && len(series) > window {
		series = series[len(series)-window:]
	}
	out := make(stats.IntervalSeries, len(series))
	copy(out, series)
	return out, nil
}

func (s *synthSource) LiveRate(context.Context, string, int) stats.LiveRate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *synthSource) ListInterfaces(context.Context) []string {
	return []string{s.iface}
}
