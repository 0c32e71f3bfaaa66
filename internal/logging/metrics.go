package logging

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// MetricsLogger renders metric snapshots as log lines under the "metrics"
// component.
type MetricsLogger struct {
	logger *Logger
}

func NewMetricsLogger(logger *Logger) *MetricsLogger {
	return &MetricsLogger{
		logger: logger.WithComponent("metrics"),
	}
}

// LogCounter logs a counter metric
func (ml *MetricsLogger) LogCounter(name string, value int64, labels map[string]string) {
	ml.emit("counter metric", "counter", name, slog.Int64("value", value), labels)
}

// LogGauge logs a gauge metric
func (ml *MetricsLogger) LogGauge(name string, value float64, labels map[string]string) {
	ml.emit("gauge metric", "gauge", name, slog.Float64("value", value), labels)
}

// LogHistogram logs a histogram observation
func (ml *MetricsLogger) LogHistogram(name string, value float64, labels map[string]string) {
	ml.emit("histogram metric", "histogram", name, slog.Float64("value", value), labels)
}

// LogTiming logs a duration in milliseconds
func (ml *MetricsLogger) LogTiming(name string, duration time.Duration, labels map[string]string) {
	ml.emit("timing metric", "timing", name, slog.Int64("duration_ms", duration.Milliseconds()), labels)
}

func (ml *MetricsLogger) emit(msg, metricType, name string, value slog.Attr, labels map[string]string) {
	attrs := []slog.Attr{
		slog.String("metric_type", metricType),
		slog.String("metric_name", name),
		value,
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("label_"+k, labels[k]))
	}

	ml.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}
