package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/timfallmk/traffic-watcher/internal/format"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

// DailyText renders the daily report.
func DailyText(yesterday, today traffic.Usage) string {
	return "📊 *Daily Traffic Report*\n\n" +
		"📅 Yesterday's Usage:\n" +
		"📥 Download: " + yesterday.RxFormatted + "\n" +
		"📤 Upload: " + yesterday.TxFormatted + "\n" +
		"📊 Total: " + yesterday.TotalFormatted() + "\n\n" +
		"📅 Today so far:\n" +
		"📥 Download: " + today.RxFormatted + "\n" +
		"📤 Upload: " + today.TxFormatted
}

// WeeklyText renders the weekly report with a per-day breakdown.
func WeeklyText(week traffic.Usage, days []traffic.DayEntry) string {
	lines := make([]string, 0, len(days))
	for _, d := range days {
		lines = append(lines, fmt.Sprintf("%s: ↓%s ↑%s", d.Date, d.RxFormatted, d.TxFormatted))
	}
	return "📊 *Weekly Traffic Report*\n\n" +
		"📥 Total Download: " + week.RxFormatted + "\n" +
		"📤 Total Upload: " + week.TxFormatted + "\n" +
		"📊 Grand Total: " + week.TotalFormatted() + "\n\n" +
		"📅 Daily Breakdown:\n" + strings.Join(lines, "\n")
}

// MonthlyText renders the monthly report with recent months.
func MonthlyText(month traffic.Usage, months []traffic.MonthEntry) string {
	lines := make([]string, 0, len(months))
	for _, m := range months {
		lines = append(lines, fmt.Sprintf("%s: ↓%s ↑%s", m.Date, m.RxFormatted, m.TxFormatted))
	}
	return "📊 *Monthly Traffic Report*\n\n" +
		"📥 This Month Download: " + month.RxFormatted + "\n" +
		"📤 This Month Upload: " + month.TxFormatted + "\n" +
		"📊 Grand Total: " + month.TotalFormatted() + "\n\n" +
		fmt.Sprintf("📅 Last %d Months:\n", RecentMonths) + strings.Join(lines, "\n")
}

// StatusText renders the all-time summary.
func StatusText(s traffic.Summary) string {
	updated := "unknown"
	if !s.Updated.IsZero() {
		updated = s.Updated.Format("2006-01-02 15:04")
	}
	return "📊 *Traffic Summary*\n\n" +
		"Interface: `" + s.Interface + "`\n\n" +
		"📥 Total RX: " + s.Traffic.Total.RxFormatted + "\n" +
		"📤 Total TX: " + s.Traffic.Total.TxFormatted + "\n\n" +
		"Last updated: " + updated
}

// TodayText renders today's usage with the change against yesterday.
func TodayText(today, yesterday traffic.Usage) string {
	return "📅 *Today's Traffic*\n\n" +
		"📥 Download: " + today.RxFormatted + " (" + PercentChange(today.Rx, yesterday.Rx) + ")\n" +
		"📤 Upload: " + today.TxFormatted + " (" + PercentChange(today.Tx, yesterday.Tx) + ")\n\n" +
		"📊 Yesterday: ↓" + yesterday.RxFormatted + " ↑" + yesterday.TxFormatted
}

// PeriodText renders a period total under the given title.
func PeriodText(title string, u traffic.Usage) string {
	return "*" + title + "*\n\n" +
		"📥 Download: " + u.RxFormatted + "\n" +
		"📤 Upload: " + u.TxFormatted + "\n" +
		"📊 Total: " + u.TotalFormatted()
}

// LiveText renders a live measurement.
func LiveText(live traffic.Live) string {
	return "⚡ *Live Bandwidth*\n\n" +
		"📥 Download: " + live.Rx + "\n" +
		"📤 Upload: " + live.Tx
}

// MeasuringText is sent while a live sample is being taken.
func MeasuringText(window time.Duration) string {
	return fmt.Sprintf("⏳ Measuring bandwidth (%d seconds)...", int(window.Seconds()))
}

// ThresholdsText renders the configured limits.
func ThresholdsText(daily, weekly, monthly uint64) string {
	return "⚠️ *Alert Thresholds*\n\n" +
		"Daily: " + format.Bytes(daily) + "\n" +
		"Weekly: " + format.Bytes(weekly) + "\n" +
		"Monthly: " + format.Bytes(monthly)
}

// ErrorText renders a command failure.
func ErrorText(err error) string {
	return "❌ Error: " + err.Error()
}

// PercentChange renders the change from prev to cur with one decimal and a
// sign, "+0%" when prev is zero.
func PercentChange(cur, prev uint64) string {
	if prev == 0 {
		return "+0%"
	}
	change := (float64(cur) - float64(prev)) / float64(prev) * 100
	if change >= 0 {
		return fmt.Sprintf("+%.1f%%", change)
	}
	return fmt.Sprintf("%.1f%%", change)
}
