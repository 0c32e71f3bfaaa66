package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timfallmk/traffic-watcher/internal/config"
)

// CreateTempConfig creates a temporary configuration file for testing
func CreateTempConfig(t *testing.T, configData string) string {
	t.Helper()

	tmpDir := t.TempDir()

	configFile := filepath.Join(tmpDir, "test_config.yaml")
	if err := os.WriteFile(configFile, []byte(configData), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	return configFile
}

// CreateTestConfig creates a test configuration with small thresholds and
// telegram disabled
func CreateTestConfig() *config.Config {
	cfg := config.DefaultConfig()

	cfg.Interface = "test0"
	cfg.Collector.LiveSampleSeconds = 1
	cfg.Thresholds = config.ThresholdConfig{DailyGB: 1, WeeklyGB: 5, MonthlyGB: 20}
	cfg.HTTP.Listen = "127.0.0.1:0"
	cfg.HTTP.Mode = "test"
	cfg.Telegram = config.TelegramConfig{}
	cfg.Logging.Level = "debug"

	return cfg
}

// CreateTestConfigYAML returns a test configuration in YAML format
func CreateTestConfigYAML() string {
	return `
interface: test0

collector:
  binary: /usr/bin/vnstat
  live_source: vnstat
  live_sample_seconds: 1

thresholds:
  daily_gb: 1
  weekly_gb: 5
  monthly_gb: 20

schedule:
  daily_report: "0 9 * * *"
  weekly_report: "0 9 * * 1"
  monthly_report: "0 9 1 * *"

http:
  listen: "127.0.0.1:0"
  mode: test

daemon:
  name: "test-traffic-watcher"
  description: "Test Traffic Watcher"

logging:
  level: debug
  format: text
  output: stderr
`
}

// SkipIfShort skips a test if running in short mode
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()

	if testing.Short() {
		t.Skipf("Skipping test in short mode: %s", reason)
	}
}

// SkipIfCI skips a test if running in CI environment
func SkipIfCI(t *testing.T, reason string) {
	t.Helper()

	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		t.Skipf("Skipping test in CI environment: %s", reason)
	}
}

// WaitForCondition waits for a condition to become true within a timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(1 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, message)
}

// RunConcurrently runs multiple functions concurrently and waits for completion
func RunConcurrently(t *testing.T, functions ...func()) {
	t.Helper()

	done := make(chan bool, len(functions))

	for _, fn := range functions {
		go func(f func()) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Panic in concurrent function: %v", r)
				}
				done <- true
			}()
			f()
		}(fn)
	}

	for i := 0; i < len(functions); i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Concurrent function did not complete within timeout")
			return
		}
	}
}
