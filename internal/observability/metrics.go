package observability

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/notify"
	"github.com/timfallmk/traffic-watcher/internal/stats"
)

// MetricType represents the type of metric
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric represents a single metric data point
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Unit      string            `json:"unit,omitempty"`
}

func (m *Metric) clone() *Metric {
	c := *m
	c.Labels = copyLabels(m.Labels)
	return &c
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	return maps.Clone(labels)
}

// MetricsCollector keeps metrics in memory and periodically writes them to the
// metrics log.
type MetricsCollector struct {
	logger        *logging.MetricsLogger
	metrics       map[string]*Metric
	mu            sync.RWMutex
	flushInterval time.Duration
	now           func() time.Time
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewMetricsCollector creates a collector. A positive flushInterval starts the
// background flush loop; otherwise metrics are only flushed on Close.
func NewMetricsCollector(logger *logging.Logger, flushInterval time.Duration) *MetricsCollector {
	ctx, cancel := context.WithCancel(context.Background())

	mc := &MetricsCollector{
		logger:        logging.NewMetricsLogger(logger),
		metrics:       make(map[string]*Metric),
		flushInterval: flushInterval,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}

	if flushInterval > 0 {
		mc.wg.Add(1)
		go mc.flushLoop()
	}

	return mc
}

// IncCounter increments a counter metric
func (mc *MetricsCollector) IncCounter(name string, labels map[string]string) {
	mc.AddCounter(name, 1, labels)
}

// AddCounter adds a value to a counter metric
func (mc *MetricsCollector) AddCounter(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := metricKey(name, labels)
	if metric, exists := mc.metrics[key]; exists {
		metric.Value += value
		metric.Timestamp = mc.now()
		return
	}
	mc.metrics[key] = &Metric{
		Name:      name,
		Type:      MetricTypeCounter,
		Value:     value,
		Labels:    copyLabels(labels),
		Timestamp: mc.now(),
	}
}

// SetGauge sets a gauge metric value
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.SetGaugeWithUnit(name, value, labels, "")
}

// SetGaugeWithUnit sets a gauge metric value with a unit
func (mc *MetricsCollector) SetGaugeWithUnit(name string, value float64, labels map[string]string, unit string) {
	mc.set(name, MetricTypeGauge, value, labels, unit)
}

// ObserveHistogram records the latest observation of a histogram metric.
func (mc *MetricsCollector) ObserveHistogram(name string, value float64, labels map[string]string) {
	mc.set(name, MetricTypeHistogram, value, labels, "")
}

// RecordDuration records a duration in seconds as a histogram metric
func (mc *MetricsCollector) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	mc.set(name, MetricTypeHistogram, duration.Seconds(), labels, "seconds")
}

func (mc *MetricsCollector) set(name string, typ MetricType, value float64, labels map[string]string, unit string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics[metricKey(name, labels)] = &Metric{
		Name:      name,
		Type:      typ,
		Value:     value,
		Labels:    copyLabels(labels),
		Timestamp: mc.now(),
		Unit:      unit,
	}
}

// GetMetrics returns a copy of all current metrics keyed by name and labels.
func (mc *MetricsCollector) GetMetrics() map[string]*Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := make(map[string]*Metric, len(mc.metrics))
	for k, v := range mc.metrics {
		snapshot[k] = v.clone()
	}
	return snapshot
}

// Snapshot returns a copy of all metrics ordered by key.
func (mc *MetricsCollector) Snapshot() []Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	keys := slices.Sorted(maps.Keys(mc.metrics))
	out := make([]Metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, *mc.metrics[k].clone())
	}
	return out
}

// GetMetricsByType returns metrics filtered by type
func (mc *MetricsCollector) GetMetricsByType(metricType MetricType) []*Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	var filtered []*Metric
	for _, metric := range mc.metrics {
		if metric.Type == metricType {
			filtered = append(filtered, metric.clone())
		}
	}
	return filtered
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = make(map[string]*Metric)
}

// Close stops the flush loop and writes a final flush.
func (mc *MetricsCollector) Close() {
	mc.cancel()
	mc.wg.Wait()
	if mc.flushInterval <= 0 {
		mc.Flush()
	}
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name)

	for _, k := range slices.Sorted(maps.Keys(labels)) {
		b.WriteString(",")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}

	return b.String()
}

func (mc *MetricsCollector) flushLoop() {
	defer mc.wg.Done()

	ticker := time.NewTicker(mc.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.ctx.Done():
			mc.Flush()
			return
		case <-ticker.C:
			mc.Flush()
		}
	}
}

// Flush writes every metric to the metrics log.
func (mc *MetricsCollector) Flush() {
	for _, metric := range mc.Snapshot() {
		switch metric.Type {
		case MetricTypeCounter:
			mc.logger.LogCounter(metric.Name, int64(metric.Value), metric.Labels)
		case MetricTypeGauge:
			mc.logger.LogGauge(metric.Name, metric.Value, metric.Labels)
		case MetricTypeHistogram:
			mc.logger.LogHistogram(metric.Name, metric.Value, metric.Labels)
		}
	}
}

// ApplicationMetrics records the daemon's domain metrics.
type ApplicationMetrics struct {
	collector *MetricsCollector
	started   time.Time
}

// NewApplicationMetrics creates application-specific metrics
func NewApplicationMetrics(collector *MetricsCollector) *ApplicationMetrics {
	return &ApplicationMetrics{
		collector: collector,
		started:   time.Now(),
	}
}

// Collector returns the underlying collector.
func (am *ApplicationMetrics) Collector() *MetricsCollector {
	return am.collector
}

func boolLabel(b bool) string {
	return strconv.FormatBool(b)
}

// RecordCollectorQuery records one collector invocation.
func (am *ApplicationMetrics) RecordCollectorQuery(op string, duration time.Duration, success bool) {
	labels := map[string]string{
		"op":      op,
		"success": boolLabel(success),
	}
	am.collector.IncCounter("collector_queries_total", labels)
	am.collector.RecordDuration("collector_query_duration_seconds", duration, map[string]string{"op": op})
}

// AlertFired records an alert and whether its notification was delivered.
func (am *ApplicationMetrics) AlertFired(kind string, delivered bool) {
	am.collector.IncCounter("alerts_fired_total", map[string]string{
		"kind":      kind,
		"delivered": boolLabel(delivered),
	})
}

// AlertCheckFailed records a threshold evaluation that could not compute usage.
func (am *ApplicationMetrics) AlertCheckFailed(kind string) {
	am.collector.IncCounter("alert_check_failures_total", map[string]string{"kind": kind})
}

// RecordNotification records one notification attempt.
func (am *ApplicationMetrics) RecordNotification(success bool) {
	am.collector.IncCounter("notifications_total", map[string]string{"success": boolLabel(success)})
}

// RecordReport records one scheduled or manual report.
func (am *ApplicationMetrics) RecordReport(kind string, success bool) {
	am.collector.IncCounter("reports_total", map[string]string{
		"kind":    kind,
		"success": boolLabel(success),
	})
}

// RecordHTTPRequest records one API request.
func (am *ApplicationMetrics) RecordHTTPRequest(route string, status int, duration time.Duration) {
	am.collector.IncCounter("http_requests_total", map[string]string{
		"route":  route,
		"status": strconv.Itoa(status),
	})
	am.collector.RecordDuration("http_request_duration_seconds", duration, map[string]string{"route": route})
}

// RecordConfigReload records configuration reload metrics
func (am *ApplicationMetrics) RecordConfigReload(success bool, duration time.Duration) {
	labels := map[string]string{"success": boolLabel(success)}

	am.collector.IncCounter("config_reloads_total", labels)
	am.collector.RecordDuration("config_reload_duration_seconds", duration, labels)
}

// RecordDaemonUptime records the time since the metrics were created.
func (am *ApplicationMetrics) RecordDaemonUptime() {
	am.collector.SetGaugeWithUnit("daemon_uptime_seconds", time.Since(am.started).Seconds(), nil, "seconds")
}

// RecordHealthCheck records one health check result.
func (am *ApplicationMetrics) RecordHealthCheck(component string, healthy bool, duration time.Duration) {
	labels := map[string]string{
		"component": component,
		"healthy":   boolLabel(healthy),
	}

	am.collector.IncCounter("health_checks_total", labels)
	am.collector.RecordDuration("health_check_duration_seconds", duration, map[string]string{"component": component})

	healthValue := 1.0
	if !healthy {
		healthValue = 0.0
	}
	am.collector.SetGauge("component_health", healthValue, map[string]string{"component": component})
}

// InstrumentSource wraps a stats.Source so each call is counted and timed.
func InstrumentSource(src stats.Source, am *ApplicationMetrics) stats.Source {
	return &instrumentedSource{src: src, metrics: am}
}

type instrumentedSource struct {
	src     stats.Source
	metrics *ApplicationMetrics
}

func (s *instrumentedSource) Info(ctx context.Context, iface string) (stats.InterfaceInfo, error) {
	start := time.Now()
	info, err := s.src.Info(ctx, iface)
	s.metrics.RecordCollectorQuery("info", time.Since(start), err == nil)
	return info, err
}

func (s *instrumentedSource) Query(ctx context.Context, iface string, g stats.Granularity, window int) (stats.IntervalSeries, error) {
	start := time.Now()
	series, err := s.src.Query(ctx, iface, g, window)
	s.metrics.RecordCollectorQuery(g.String(), time.Since(start), err == nil)
	return series, err
}

func (s *instrumentedSource) LiveRate(ctx context.Context, iface string, sampleSeconds int) stats.LiveRate {
	start := time.Now()
	rate := s.src.LiveRate(ctx, iface, sampleSeconds)
	s.metrics.RecordCollectorQuery("live", time.Since(start), true)
	return rate
}

func (s *instrumentedSource) ListInterfaces(ctx context.Context) []string {
	start := time.Now()
	ifaces := s.src.ListInterfaces(ctx)
	s.metrics.RecordCollectorQuery("iflist", time.Since(start), true)
	return ifaces
}

// InstrumentSink wraps a notify.Sink so each delivery attempt is counted.
func InstrumentSink(sink notify.Sink, am *ApplicationMetrics) notify.Sink {
	return &instrumentedSink{sink: sink, metrics: am}
}

type instrumentedSink struct {
	sink    notify.Sink
	metrics *ApplicationMetrics
}

func (s *instrumentedSink) Send(ctx context.Context, destination, text string) error {
	err := s.sink.Send(ctx, destination, text)
	s.metrics.RecordNotification(err == nil)
	return err
}

// Timer measures a single operation.
type Timer struct {
	startTime time.Time
	name      string
	labels    map[string]string
	collector *MetricsCollector
}

// StartTimer creates and starts a new timer
func (mc *MetricsCollector) StartTimer(name string, labels map[string]string) *Timer {
	return &Timer{
		startTime: time.Now(),
		name:      name,
		labels:    copyLabels(labels),
		collector: mc,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.startTime)
	t.collector.RecordDuration(t.name, duration, t.labels)
	return duration
}

// StopWithSuccess stops the timer and records it with a success label.
func (t *Timer) StopWithSuccess(success bool) time.Duration {
	duration := time.Since(t.startTime)

	labels := copyLabels(t.labels)
	if labels == nil {
		labels = make(map[string]string, 1)
	}
	labels["success"] = boolLabel(success)

	t.collector.RecordDuration(t.name, duration, labels)
	return duration
}
