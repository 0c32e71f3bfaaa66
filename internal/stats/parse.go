package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	errNoInterfaces       = errors.New("no interfaces in collector output")
	errUnsupportedVersion = errors.New("unsupported collector json version")

	liveRatePattern   = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(bit|kbit|mbit|gbit)/s`)
	ifListPattern     = regexp.MustCompile(`(?i)available interfaces:\s*(.*)`)
	ifAnnotationRegex = regexp.MustCompile(`\([^)]*\)`)
)

// vnstatDocument mirrors the collector's --json output (json version 2).
type vnstatDocument struct {
	VnstatVersion string            `json:"vnstatversion"`
	JSONVersion   string            `json:"jsonversion"`
	Interfaces    []vnstatInterface `json:"interfaces"`
}

type vnstatInterface struct {
	Name    string        `json:"name"`
	Alias   string        `json:"alias"`
	Created vnstatStamp   `json:"created"`
	Updated vnstatStamp   `json:"updated"`
	Traffic vnstatTraffic `json:"traffic"`
}

type vnstatStamp struct {
	Time *vnstatTime `json:"time,omitempty"`
	Date vnstatDate  `json:"date"`
}

type vnstatDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type vnstatTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type vnstatTraffic struct {
	Hour  []vnstatEntry `json:"hour"`
	Day   []vnstatEntry `json:"day"`
	Month []vnstatEntry `json:"month"`
	Total vnstatCounter `json:"total"`
}

type vnstatCounter struct {
	Rx uint64 `json:"rx"`
	Tx uint64 `json:"tx"`
}

type vnstatEntry struct {
	Time *vnstatTime `json:"time,omitempty"`
	Date vnstatDate  `json:"date"`
	Rx   uint64      `json:"rx"`
	Tx   uint64      `json:"tx"`
}

func (s vnstatStamp) in(loc *time.Location) time.Time {
	return toTime(s.Date, s.Time, loc)
}

func toTime(d vnstatDate, t *vnstatTime, loc *time.Location) time.Time {
	if d.Year == 0 {
		return time.Time{}
	}
	day := d.Day
	if day == 0 {
		day = 1
	}
	var hour, minute int
	if t != nil {
		hour, minute = t.Hour, t.Minute
	}
	return time.Date(d.Year, time.Month(d.Month), day, hour, minute, 0, 0, loc)
}

// parseInterface decodes collector JSON and returns its first interface.
func parseInterface(out []byte) (vnstatInterface, error) {
	var doc vnstatDocument
	if err := json.Unmarshal(out, &doc); err != nil {
		return vnstatInterface{}, fmt.Errorf("decode collector output: %w", err)
	}
	if doc.JSONVersion != "" && doc.JSONVersion != "2" {
		return vnstatInterface{}, fmt.Errorf("%w: %s", errUnsupportedVersion, doc.JSONVersion)
	}
	if len(doc.Interfaces) == 0 {
		return vnstatInterface{}, errNoInterfaces
	}
	return doc.Interfaces[0], nil
}

func parseInfo(out []byte, loc *time.Location) (InterfaceInfo, error) {
	iface, err := parseInterface(out)
	if err != nil {
		return InterfaceInfo{}, err
	}
	return InterfaceInfo{
		Name:    iface.Name,
		Alias:   iface.Alias,
		Created: iface.Created.in(loc),
		Updated: iface.Updated.in(loc),
		TotalRx: iface.Traffic.Total.Rx,
		TotalTx: iface.Traffic.Total.Tx,
	}, nil
}

// parseSeries extracts the table for g, sorted oldest first.
func parseSeries(out []byte, g Granularity, loc *time.Location) (IntervalSeries, error) {
	iface, err := parseInterface(out)
	if err != nil {
		return nil, err
	}

	var entries []vnstatEntry
	switch g {
	case Hour:
		entries = iface.Traffic.Hour
	case Day:
		entries = iface.Traffic.Day
	case Month:
		entries = iface.Traffic.Month
	}

	series := make(IntervalSeries, 0, len(entries))
	for _, e := range entries {
		series = append(series, TrafficSample{
			PeriodStart: toTime(e.Date, e.Time, loc),
			Rx:          e.Rx,
			Tx:          e.Tx,
		})
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].PeriodStart.Before(series[j].PeriodStart)
	})
	return series, nil
}

// parseLiveRate reads the rx and tx lines of a traffic-rate sample.
func parseLiveRate(out string) LiveRate {
	rate := ZeroLiveRate()
	var rxSeen, txSeen bool
	for _, line := range strings.Split(out, "\n") {
		lower := strings.ToLower(line)
		m := liveRatePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		value := m[1] + " " + m[2] + "/s"
		if !rxSeen && strings.Contains(lower, "rx") {
			rate.Rx, rxSeen = value, true
		}
		if !txSeen && strings.Contains(lower, "tx") {
			rate.Tx, txSeen = value, true
		}
	}
	return rate
}

// parseInterfaceList reads "Available interfaces: lo eth0 (1000 Mbit)".
func parseInterfaceList(out string) []string {
	m := ifListPattern.FindStringSubmatch(out)
	if m == nil {
		return []string{}
	}
	cleaned := ifAnnotationRegex.ReplaceAllString(m[1], " ")
	names := strings.Fields(cleaned)
	if names == nil {
		return []string{}
	}
	return names
}
