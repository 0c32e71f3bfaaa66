// Package alert decides when traffic has crossed a daily, weekly or monthly
// limit and sends at most one alert per period for each kind.
package alert

import (
	"fmt"
	"time"
)

// Kind is a threshold class.
type Kind string

const (
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
)

// Kinds lists every kind in evaluation order.
var Kinds = []Kind{Daily, Weekly, Monthly}

// Title is the capitalised kind name used in messages.
func (k Kind) Title() string {
	switch k {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	case Monthly:
		return "Monthly"
	default:
		return string(k)
	}
}

// Threshold is a usage limit for one kind.
type Threshold struct {
	Kind       Kind
	LimitBytes uint64
}

// Thresholds holds the limit for each kind, in bytes.
type Thresholds struct {
	Daily   uint64
	Weekly  uint64
	Monthly uint64
}

// For returns the threshold configured for k.
func (t Thresholds) For(k Kind) Threshold {
	var limit uint64
	switch k {
	case Daily:
		limit = t.Daily
	case Weekly:
		limit = t.Weekly
	case Monthly:
		limit = t.Monthly
	}
	return Threshold{Kind: k, LimitBytes: limit}
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// PeriodKey identifies the period containing t for kind k: the calendar date
// for daily, the ISO-8601 week for weekly and the calendar month for monthly.
// Keys are computed in t's location.
func PeriodKey(k Kind, t time.Time) string {
	switch k {
	case Daily:
		return t.Format("2006-01-02")
	case Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Monthly:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	default:
		return ""
	}
}
