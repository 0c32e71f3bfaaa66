package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timfallmk/traffic-watcher/internal/notify"
	"github.com/timfallmk/traffic-watcher/internal/stats"
	"github.com/timfallmk/traffic-watcher/internal/testutils"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

func newReporter(t *testing.T) (*Reporter, *testutils.FakeSource, *testutils.RecordingSink) {
	t.Helper()
	src := testutils.NewFakeSource("eth0")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src.SetSeries(stats.Day, testutils.Days(start, 1024, 2048, 100, 200, 300, 400, 500, 600, 1536))
	src.SetSeries(stats.Month, stats.IntervalSeries{
		testutils.Month(2023, 10, 1, 1),
		testutils.Month(2023, 11, 2, 2),
		testutils.Month(2023, 12, 3, 3),
		testutils.Month(2024, 1, 1024, 1024),
	})
	sink := &testutils.RecordingSink{}
	now := func() time.Time { return time.Date(2024, 1, 9, 18, 0, 0, 0, time.UTC) }
	return NewReporter(traffic.NewEngine(src, traffic.WithNow(now)), sink, "eth0", "42"), src, sink
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"daily", "weekly", "monthly"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}
	_, err := ParseKind("hourly")
	assert.Error(t, err)
}

func TestBuildDaily(t *testing.T) {
	r, _, _ := newReporter(t)

	text, err := r.BuildDaily(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "📊 *Daily Traffic Report*"))
	// Yesterday is 600 B, today 1536 B.
	assert.Contains(t, text, "📅 Yesterday's Usage:\n📥 Download: 600 B\n📤 Upload: 0 B\n📊 Total: 600 B")
	assert.Contains(t, text, "📅 Today so far:\n📥 Download: 1.5 KB")
}

func TestBuildWeekly(t *testing.T) {
	r, src, _ := newReporter(t)

	text, err := r.BuildWeekly(context.Background())
	require.NoError(t, err)

	// Rolling seven days: Jan 3 through Jan 9.
	assert.Contains(t, text, "📊 Grand Total: 3.55 KB")
	assert.Contains(t, text, "📅 Daily Breakdown:\n2024-01-03: ↓100 B ↑0 B\n")
	assert.True(t, strings.HasSuffix(text, "2024-01-09: ↓1.5 KB ↑0 B"))
	assert.Equal(t, 7, strings.Count(text, "2024-01-"))
	assert.Equal(t, []int{traffic.RollingDays, RecentDays}, src.Windows(stats.Day))
}

func TestBuildMonthly(t *testing.T) {
	r, _, _ := newReporter(t)

	text, err := r.BuildMonthly(context.Background())
	require.NoError(t, err)

	assert.Contains(t, text, "📥 This Month Download: 1 KB")
	assert.Contains(t, text, "📊 Grand Total: 2 KB")
	assert.Contains(t, text, "📅 Last 3 Months:\n2023-11: ↓2 B ↑2 B\n2023-12: ↓3 B ↑3 B\n2024-01: ↓1 KB ↑1 KB")
	assert.NotContains(t, text, "2023-10")
}

func TestSendDeliversToDestination(t *testing.T) {
	r, _, sink := newReporter(t)

	require.NoError(t, r.SendDaily(context.Background()))
	require.NoError(t, r.SendWeekly(context.Background()))
	require.NoError(t, r.SendMonthly(context.Background()))

	msgs := sink.Messages()
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, "42", m.Destination)
	}
	assert.Contains(t, msgs[2].Text, "Monthly Traffic Report")
}

func TestSendErrors(t *testing.T) {
	r, src, sink := newReporter(t)

	src.SetError(stats.Month, errors.New("exit status 1"))
	err := r.Send(context.Background(), Monthly)
	assert.ErrorIs(t, err, stats.ErrCollectorUnavailable)
	assert.Empty(t, sink.Messages(), "nothing is sent when the build fails")

	sink.Err = notify.ErrDeliveryFailed
	err = r.Send(context.Background(), Daily)
	assert.ErrorIs(t, err, notify.ErrDeliveryFailed)

	_, err = r.Build(context.Background(), Kind("yearly"))
	assert.Error(t, err)
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		cur, prev uint64
		want      string
	}{
		{150, 100, "+50.0%"},
		{50, 100, "-50.0%"},
		{100, 100, "+0.0%"},
		{123, 0, "+0%"},
		{1, 3, "-66.7%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PercentChange(tt.cur, tt.prev), "%d vs %d", tt.cur, tt.prev)
	}
}

func TestCommandTexts(t *testing.T) {
	sum := traffic.Summary{
		Interface: "eth0",
		Updated:   time.Date(2024, 3, 10, 7, 5, 0, 0, time.UTC),
		Traffic:   traffic.SummaryTraffic{Total: traffic.NewUsage(1<<30, 1<<20)},
	}
	status := StatusText(sum)
	assert.Contains(t, status, "Interface: `eth0`")
	assert.Contains(t, status, "📥 Total RX: 1 GB")
	assert.Contains(t, status, "Last updated: 2024-03-10 07:05")
	assert.Contains(t, StatusText(traffic.Summary{}), "Last updated: unknown")

	today := TodayText(traffic.NewUsage(150, 0), traffic.NewUsage(100, 0))
	assert.Contains(t, today, "📥 Download: 150 B (+50.0%)")
	assert.Contains(t, today, "📤 Upload: 0 B (+0%)")
	assert.Contains(t, today, "📊 Yesterday: ↓100 B ↑0 B")

	assert.Contains(t, PeriodText("📆 This Week's Traffic", traffic.NewUsage(1, 2)), "📊 Total: 3 B")
	assert.Contains(t, LiveText(traffic.Live{Rx: "1 kbit/s", Tx: "2 kbit/s"}), "📤 Upload: 2 kbit/s")
	assert.Equal(t, "⏳ Measuring bandwidth (2 seconds)...", MeasuringText(2*time.Second))
	assert.Equal(t, "⚠️ *Alert Thresholds*\n\nDaily: 100 GB\nWeekly: 500 GB\nMonthly: 1.95 TB",
		ThresholdsText(100<<30, 500<<30, 2000<<30))
	assert.Equal(t, "❌ Error: boom", ErrorText(errors.New("boom")))
}
