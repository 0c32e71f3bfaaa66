package traffic

import (
	"time"

	"github.com/timfallmk/traffic-watcher/internal/format"
)

// Usage is a byte volume with its display strings. Build it with NewUsage so
// the formatted fields always match the raw ones.
type Usage struct {
	RxFormatted string `json:"rxFormatted"`
	TxFormatted string `json:"txFormatted"`
	Rx          uint64 `json:"rx"`
	Tx          uint64 `json:"tx"`
}

// NewUsage builds a Usage with formatted fields.
func NewUsage(rx, tx uint64) Usage {
	return Usage{
		Rx:          rx,
		Tx:          tx,
		RxFormatted: format.Bytes(rx),
		TxFormatted: format.Bytes(tx),
	}
}

// Total returns rx+tx.
func (u Usage) Total() uint64 {
	return u.Rx + u.Tx
}

// TotalFormatted renders Total with format.Bytes.
func (u Usage) TotalFormatted() string {
	return format.Bytes(u.Total())
}

// Summary is the all-time view of an interface.
type Summary struct {
	Created   time.Time      `json:"created"`
	Updated   time.Time      `json:"updated"`
	Interface string         `json:"interface"`
	Alias     string         `json:"alias,omitempty"`
	Traffic   SummaryTraffic `json:"traffic"`
}

// SummaryTraffic nests the totals the way the dashboard expects.
type SummaryTraffic struct {
	Total Usage `json:"total"`
}

// HourEntry is one hour of the hourly view.
type HourEntry struct {
	Date string `json:"date"`
	Usage
	Hour int `json:"hour"`
}

// DayEntry is one day of the daily view.
type DayEntry struct {
	Date string `json:"date"`
	Usage
}

// WeekBucket sums the days from StartDate through EndDate inclusive. A bucket
// only ever spans a single Monday-to-Sunday week, but may cover fewer days at
// the edges of the query window.
type WeekBucket struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Usage
	Days int `json:"days"`
}

// MonthEntry is one month of the monthly view.
type MonthEntry struct {
	Date string `json:"date"`
	Usage
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Hourly is the trailing 24 hours, oldest first.
type Hourly struct {
	Interface string      `json:"interface"`
	Hours     []HourEntry `json:"hours"`
}

// Daily is the trailing 30 days, oldest first.
type Daily struct {
	Interface string     `json:"interface"`
	Days      []DayEntry `json:"days"`
}

// Weekly is the newest 12 week buckets, oldest first.
type Weekly struct {
	Interface string       `json:"interface"`
	Weeks     []WeekBucket `json:"weeks"`
}

// Monthly is the trailing 12 months, oldest first.
type Monthly struct {
	Interface string       `json:"interface"`
	Months    []MonthEntry `json:"months"`
}

// Live is a live bandwidth measurement.
type Live struct {
	Timestamp time.Time `json:"timestamp"`
	Rx        string    `json:"rx"`
	Tx        string    `json:"tx"`
}
