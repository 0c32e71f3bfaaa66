package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer written from the event goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T) []map[string]interface{} {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for scanner.Scan() {
		var entry map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("Failed to parse JSON log line %q: %v", scanner.Text(), err)
		}
		out = append(out, entry)
	}
	return out
}

func jsonLogger(w *syncBuffer, level LogLevel) *Logger {
	return NewWithWriter(w, Config{Level: level, Format: FormatJSON})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "default config",
			config: DefaultConfig(),
		},
		{
			name:   "json format to stderr",
			config: Config{Level: LevelDebug, Format: FormatJSON, Output: "stderr"},
		},
		{
			name:    "unwritable file",
			config:  Config{Level: LevelInfo, Output: "/proc/definitely/not/here.log"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}

			if logger != nil {
				if err := logger.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			}
		})
	}
}

func TestLogger_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "test.log")

	logger, err := NewLogger(Config{Level: LevelInfo, Format: FormatJSON, Output: logFile})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("test message", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "test message") {
		t.Errorf("Log file does not contain expected message")
	}
}

func TestLogger_StdoutNotClosed(t *testing.T) {
	logger, err := NewLogger(DefaultConfig())
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stdout.Stat(); err != nil {
		t.Errorf("stdout was closed: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   LogLevel
		want slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_WithComponentAndFields(t *testing.T) {
	var buf syncBuffer
	logger := jsonLogger(&buf, LevelInfo)

	logger.WithComponent("api").WithFields(map[string]interface{}{
		"status": 500,
		"path":   "/api/traffic/daily",
	}).Info("request")

	lines := buf.lines(t)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["component"] != "api" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["status"] != float64(500) {
		t.Errorf("status = %v", entry["status"])
	}
	if _, err := time.Parse(time.RFC3339, entry["time"].(string)); err != nil {
		t.Errorf("time is not RFC3339: %v", entry["time"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf syncBuffer
	logger := jsonLogger(&buf, LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	lines := buf.lines(t)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Errorf("lines = %v", lines)
	}
}

func TestEventLogger(t *testing.T) {
	var buf syncBuffer
	eventLogger := NewEventLogger(jsonLogger(&buf, LevelDebug))

	eventLogger.LogCollector(LevelWarn, "collector query failed", "eth0", "query day", errors.New("exit status 1"))
	eventLogger.LogAlert(LevelInfo, "threshold exceeded", "daily", "2024-01-02", 150, 100, nil)
	eventLogger.LogReport(LevelError, "report delivery failed", "weekly", errors.New("timeout"))
	eventLogger.LogConfig(LevelInfo, "config reloaded", "/etc/traffic-watcher/config.yaml", nil)
	eventLogger.LogDaemon(LevelInfo, "daemon started", "start", map[string]interface{}{"pid": 1234})
	eventLogger.Close()

	lines := buf.lines(t)
	if len(lines) != 5 {
		t.Fatalf("expected 5 events after Close, got %d", len(lines))
	}

	byComponent := map[string]map[string]interface{}{}
	for _, l := range lines {
		byComponent[l["component"].(string)] = l
	}

	if c := byComponent["collector"]; c["interface"] != "eth0" || c["error"] != "exit status 1" || c["level"] != "WARN" {
		t.Errorf("collector event = %v", c)
	}
	if a := byComponent["alert"]; a["period_key"] != "2024-01-02" || a["limit_bytes"] != float64(100) {
		t.Errorf("alert event = %v", a)
	}
	if r := byComponent["report"]; r["kind"] != "weekly" || r["level"] != "ERROR" {
		t.Errorf("report event = %v", r)
	}
	if c := byComponent["config"]; c["config_path"] != "/etc/traffic-watcher/config.yaml" {
		t.Errorf("config event = %v", c)
	}
	if d := byComponent["daemon"]; d["action"] != "start" {
		t.Errorf("daemon event = %v", d)
	}
}

func TestEventLogger_LogError(t *testing.T) {
	var buf syncBuffer
	eventLogger := NewEventLogger(jsonLogger(&buf, LevelError))

	eventLogger.LogError(errors.New("test error message"), "operation failed", map[string]interface{}{
		"operation": "test",
	})
	eventLogger.Close()

	lines := buf.lines(t)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["caller_file"] != "logger_test.go" {
		t.Errorf("caller_file = %v", lines[0]["caller_file"])
	}
	if lines[0]["error"] != "test error message" {
		t.Errorf("error = %v", lines[0]["error"])
	}
}

func TestEventLogger_AfterClose(t *testing.T) {
	var buf syncBuffer
	eventLogger := NewEventLogger(jsonLogger(&buf, LevelInfo))
	eventLogger.Close()
	eventLogger.Close()

	eventLogger.LogDaemon(LevelInfo, "late", "stop", nil)

	if lines := buf.lines(t); len(lines) != 1 {
		t.Errorf("expected the late event to be written directly, got %d lines", len(lines))
	}
}

func TestMetricsLogger(t *testing.T) {
	var buf syncBuffer
	metricsLogger := NewMetricsLogger(jsonLogger(&buf, LevelInfo))

	metricsLogger.LogCounter("collector_queries_total", 100, map[string]string{"granularity": "day"})
	metricsLogger.LogGauge("daemon_uptime_seconds", 12.5, nil)
	metricsLogger.LogHistogram("http_request_seconds", 0.5, map[string]string{"route": "/api/health"})
	metricsLogger.LogTiming("report_build", 250*time.Millisecond, nil)

	lines := buf.lines(t)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0]["metric_name"] != "collector_queries_total" || lines[0]["label_granularity"] != "day" {
		t.Errorf("counter line = %v", lines[0])
	}
	if lines[0]["component"] != "metrics" {
		t.Errorf("component = %v", lines[0]["component"])
	}
	if lines[3]["duration_ms"] != float64(250) {
		t.Errorf("timing line = %v", lines[3])
	}
}

func TestGlobalLogger(t *testing.T) {
	SetGlobalLogger(nil)
	defer SetGlobalLogger(nil)

	if GetGlobalLogger() == nil {
		t.Fatal("Expected non-nil global logger")
	}

	var buf syncBuffer
	custom := jsonLogger(&buf, LevelDebug)
	SetGlobalLogger(custom)

	if GetGlobalLogger() != custom {
		t.Error("Global logger was not set correctly")
	}

	Debug("debug message", "key", "value")
	Info("info message")
	Warn("warn message")
	Error("error message")
	WithComponent("test").Info("component message")

	if lines := buf.lines(t); len(lines) != 5 {
		t.Errorf("expected 5 lines, got %d", len(lines))
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Level != LevelInfo || config.Format != FormatText || config.Output != "stdout" {
		t.Errorf("DefaultConfig() = %+v", config)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
