package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timfallmk/traffic-watcher/internal/alert"
	"github.com/timfallmk/traffic-watcher/internal/config"
	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/observability"
	"github.com/timfallmk/traffic-watcher/internal/stats"
	"github.com/timfallmk/traffic-watcher/internal/testutils"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T, mutate func(*Options)) (*gin.Engine, *testutils.FakeSource) {
	t.Helper()

	source := testutils.NewFakeSource("eth0")
	source.SetSeries(stats.Day, stats.IntervalSeries{
		testutils.Day(2024, 3, 14, 1024, 512),
		testutils.Day(2024, 3, 15, 2048, 0),
	})
	source.SetSeries(stats.Month, stats.IntervalSeries{testutils.Month(2024, 3, 10, 20)})
	source.SetSeries(stats.Hour, stats.IntervalSeries{testutils.Hour(2024, 3, 15, 11, 1, 2)})
	source.Details = stats.InterfaceInfo{Name: "eth0", TotalRx: 1 << 30, TotalTx: 1 << 20}
	source.Live = stats.LiveRate{Rx: "1.5 Mbit/s", Tx: "200 kbit/s"}
	source.Ifaces = []string{"eth0", "wlan0"}

	opts := Options{
		Traffic:   traffic.NewEngine(source, traffic.WithNow(func() time.Time { return fixedNow })),
		Interface: "eth0",
		Thresholds: func() alert.Thresholds {
			return alert.Thresholds{Daily: config.ThresholdBytes(100), Weekly: config.ThresholdBytes(500), Monthly: config.ThresholdBytes(2000)}
		},
		Logger: logging.Discard(),
		Now:    func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewRouter(opts), source
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := get(t, r, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	decode(t, w, &body)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Timestamp.Equal(fixedNow))
}

func TestTrafficViews(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	t.Run("summary", func(t *testing.T) {
		w := get(t, r, "/api/traffic/summary")
		require.Equal(t, http.StatusOK, w.Code)
		var s traffic.Summary
		decode(t, w, &s)
		assert.Equal(t, "eth0", s.Interface)
		assert.Equal(t, "1 GB", s.Traffic.Total.RxFormatted)
		assert.Equal(t, "1 MB", s.Traffic.Total.TxFormatted)
	})

	t.Run("hourly", func(t *testing.T) {
		w := get(t, r, "/api/traffic/hourly")
		require.Equal(t, http.StatusOK, w.Code)
		var h traffic.Hourly
		decode(t, w, &h)
		require.Len(t, h.Hours, 1)
		assert.Equal(t, "2024-03-15", h.Hours[0].Date)
		assert.Equal(t, 11, h.Hours[0].Hour)
	})

	t.Run("daily", func(t *testing.T) {
		w := get(t, r, "/api/traffic/daily")
		require.Equal(t, http.StatusOK, w.Code)
		var d traffic.Daily
		decode(t, w, &d)
		require.Len(t, d.Days, 2)
		assert.Equal(t, "2024-03-14", d.Days[0].Date)
		assert.Equal(t, "1 KB", d.Days[0].RxFormatted)
	})

	t.Run("weekly", func(t *testing.T) {
		w := get(t, r, "/api/traffic/weekly")
		require.Equal(t, http.StatusOK, w.Code)
		var wk traffic.Weekly
		decode(t, w, &wk)
		require.Len(t, wk.Weeks, 1)
		assert.Equal(t, "2024-03-11", wk.Weeks[0].StartDate)
		assert.Equal(t, uint64(3072), wk.Weeks[0].Rx)
	})

	t.Run("monthly", func(t *testing.T) {
		w := get(t, r, "/api/traffic/monthly")
		require.Equal(t, http.StatusOK, w.Code)
		var m traffic.Monthly
		decode(t, w, &m)
		require.Len(t, m.Months, 1)
		assert.Equal(t, "2024-03", m.Months[0].Date)
	})

	t.Run("live", func(t *testing.T) {
		w := get(t, r, "/api/traffic/live")
		require.Equal(t, http.StatusOK, w.Code)
		var l traffic.Live
		decode(t, w, &l)
		assert.Equal(t, "1.5 Mbit/s", l.Rx)
		assert.Equal(t, "200 kbit/s", l.Tx)
	})

	t.Run("interfaces", func(t *testing.T) {
		w := get(t, r, "/api/interfaces")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `["eth0","wlan0"]`, w.Body.String())
	})
}

func TestTrafficViews_CollectorFailure(t *testing.T) {
	r, source := newTestRouter(t, nil)
	source.InfoErr = errors.New("exit status 1")
	source.SetError(stats.Day, errors.New("exit status 1"))
	source.SetError(stats.Hour, errors.New("exit status 1"))
	source.SetError(stats.Month, errors.New("exit status 1"))

	for _, path := range []string{
		"/api/traffic/summary",
		"/api/traffic/hourly",
		"/api/traffic/daily",
		"/api/traffic/weekly",
		"/api/traffic/monthly",
	} {
		t.Run(path, func(t *testing.T) {
			w := get(t, r, path)
			require.Equal(t, http.StatusInternalServerError, w.Code)
			var body ErrorBody
			decode(t, w, &body)
			assert.Contains(t, body.Error, "collector unavailable")
		})
	}
}

func TestLiveAndInterfacesNeverFail(t *testing.T) {
	r, source := newTestRouter(t, nil)
	source.Live = stats.ZeroLiveRate()
	source.Ifaces = nil

	w := get(t, r, "/api/traffic/live")
	require.Equal(t, http.StatusOK, w.Code)
	var l traffic.Live
	decode(t, w, &l)
	assert.Equal(t, stats.ZeroRate, l.Rx)
	assert.Equal(t, stats.ZeroRate, l.Tx)

	w = get(t, r, "/api/interfaces")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestThresholds(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w := get(t, r, "/api/thresholds")
	require.Equal(t, http.StatusOK, w.Code)

	var body ThresholdsResponse
	decode(t, w, &body)
	assert.Equal(t, "eth0", body.Interface)
	assert.Equal(t, config.ThresholdBytes(100), body.Daily.Bytes)
	assert.Equal(t, "100 GB", body.Daily.Formatted)
	assert.Equal(t, "500 GB", body.Weekly.Formatted)
	assert.Equal(t, "1.95 TB", body.Monthly.Formatted)
}

func TestHealthComponents(t *testing.T) {
	t.Run("no monitor", func(t *testing.T) {
		r, _ := newTestRouter(t, nil)
		w := get(t, r, "/api/health/components")
		require.Equal(t, http.StatusOK, w.Code)
		var body ComponentsResponse
		decode(t, w, &body)
		assert.Equal(t, observability.StatusUnknown, body.Status)
		assert.Empty(t, body.Components)
	})

	t.Run("refresh runs checks", func(t *testing.T) {
		monitor := observability.NewHealthMonitor(logging.Discard(), nil, time.Hour)
		t.Cleanup(monitor.Stop)
		monitor.RegisterChecker(observability.NewFuncChecker("collector", time.Second, func(context.Context) error {
			return errors.New("down")
		}))

		r, _ := newTestRouter(t, func(o *Options) { o.Health = monitor })

		w := get(t, r, "/api/health/components")
		var before ComponentsResponse
		decode(t, w, &before)
		assert.Equal(t, observability.StatusStarting, before.Status)

		w = get(t, r, "/api/health/components?refresh=1")
		var after ComponentsResponse
		decode(t, w, &after)
		assert.Equal(t, observability.StatusUnhealthy, after.Status)
		require.Contains(t, after.Components, "collector")
		assert.Equal(t, "down", after.Components["collector"].Error)
	})
}

func TestMetrics(t *testing.T) {
	collector := observability.NewMetricsCollector(logging.Discard(), 0)
	t.Cleanup(collector.Close)
	metrics := observability.NewApplicationMetrics(collector)

	r, _ := newTestRouter(t, func(o *Options) { o.Metrics = metrics })

	get(t, r, "/api/traffic/daily")
	w := get(t, r, "/api/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Metrics []observability.Metric `json:"metrics"`
	}
	decode(t, w, &body)

	names := make(map[string]bool)
	for _, m := range body.Metrics {
		names[m.Name] = true
	}
	assert.True(t, names["http_requests_total"])
	assert.True(t, names["daemon_uptime_seconds"])
}

func TestCORS(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/traffic/daily", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))

	w = get(t, r, "/api/health")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := get(t, r, "/boom")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body ErrorBody
	decode(t, w, &body)
	assert.Equal(t, "internal server error", body.Error)
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>dash</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	r, _ := newTestRouter(t, func(o *Options) { o.StaticDir = dir })

	w := get(t, r, "/app.js")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	w = get(t, r, "/weekly/view")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dash")

	w = get(t, r, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNoStaticDir(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	w := get(t, r, "/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
