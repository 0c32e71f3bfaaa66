package traffic

import (
	"time"

	"github.com/timfallmk/traffic-watcher/internal/stats"
)

// FoldWeeks groups daily samples, oldest first, into weeks starting on
// Monday. The first and last buckets may be partial when the series does not
// begin on a Monday or end on a Sunday. Days missing from the series only
// shorten a bucket; they never merge two calendar weeks.
func FoldWeeks(days stats.IntervalSeries) []WeekBucket {
	weeks := []WeekBucket{}

	var (
		current *WeekBucket
		monday  time.Time
		rx, tx  uint64
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Usage = NewUsage(rx, tx)
		weeks = append(weeks, *current)
		current, rx, tx = nil, 0, 0
	}

	for _, d := range days {
		start := weekStart(d.PeriodStart)
		if current != nil && !start.Equal(monday) {
			flush()
		}
		date := d.PeriodStart.Format(dateLayout)
		if current == nil {
			current = &WeekBucket{StartDate: date}
			monday = start
		}
		rx += d.Rx
		tx += d.Tx
		current.EndDate = date
		current.Days++
	}
	flush()

	return weeks
}

// weekStart returns midnight of the Monday on or before t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}
