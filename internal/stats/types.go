package stats

import (
	"context"
	"time"
)

// Granularity selects which of the collector's history tables a query reads.
type Granularity int

// Granularities reported by the collector.
const (
	Hour Granularity = iota
	Day
	Month
)

func (g Granularity) String() string {
	switch g {
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Month:
		return "month"
	default:
		return "unknown"
	}
}

// mode is the collector's JSON mode selector for the granularity.
func (g Granularity) mode() string {
	switch g {
	case Hour:
		return "h"
	case Month:
		return "m"
	default:
		return "d"
	}
}

// TrafficSample is the byte volume of one hour, day or month bucket.
type TrafficSample struct {
	PeriodStart time.Time
	Rx          uint64
	Tx          uint64
}

// Total returns rx+tx.
func (s TrafficSample) Total() uint64 {
	return s.Rx + s.Tx
}

// IntervalSeries is a run of samples of one granularity, oldest first.
type IntervalSeries []TrafficSample

// Last returns the newest sample.
func (s IntervalSeries) Last() (TrafficSample, bool) {
	if len(s) == 0 {
		return TrafficSample{}, false
	}
	return s[len(s)-1], true
}

// Sum adds up every sample in the series.
func (s IntervalSeries) Sum() (rx, tx uint64) {
	for _, sample := range s {
		rx += sample.Rx
		tx += sample.Tx
	}
	return rx, tx
}

// InterfaceInfo holds the all-time counters the collector keeps for an interface.
type InterfaceInfo struct {
	Created time.Time
	Updated time.Time
	Name    string
	Alias   string
	TotalRx uint64
	TotalTx uint64
}

// ZeroRate is what a live measurement reports when nothing could be measured.
const ZeroRate = "0 bit/s"

// LiveRate is a short-window bandwidth measurement, already formatted.
type LiveRate struct {
	Rx string
	Tx string
}

// ZeroLiveRate returns a LiveRate with both directions at ZeroRate.
func ZeroLiveRate() LiveRate {
	return LiveRate{Rx: ZeroRate, Tx: ZeroRate}
}

// Source is the statistics collector as seen by the rest of the daemon.
//
// Info and Query fail with an error wrapping ErrCollectorUnavailable. LiveRate
// and ListInterfaces never fail: live polling degrades to ZeroLiveRate and the
// interface listing degrades to an empty slice.
type Source interface {
	Info(ctx context.Context, iface string) (InterfaceInfo, error)
	Query(ctx context.Context, iface string, g Granularity, window int) (IntervalSeries, error)
	LiveRate(ctx context.Context, iface string, sampleSeconds int) LiveRate
	ListInterfaces(ctx context.Context) []string
}

// LiveSampler measures bandwidth over a short window.
type LiveSampler interface {
	Sample(ctx context.Context, iface string, sampleSeconds int) (LiveRate, error)
}
