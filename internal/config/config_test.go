package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envNames = []string{
	"NETWORK_INTERFACE", "VNSTAT_BIN",
	"DAILY_THRESHOLD_GB", "WEEKLY_THRESHOLD_GB", "MONTHLY_THRESHOLD_GB",
	"DAILY_REPORT_CRON", "WEEKLY_REPORT_CRON", "MONTHLY_REPORT_CRON",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "PORT", "STATIC_DIR", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		// Setenv registers the restore; the variable itself must be absent
		// so env files are allowed to set it.
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Interface != "eth0" {
		t.Errorf("Expected interface eth0, got %s", cfg.Interface)
	}

	if cfg.Collector.Binary != "vnstat" || cfg.Collector.LiveSampleSeconds != 2 {
		t.Errorf("Unexpected collector defaults: %+v", cfg.Collector)
	}

	if cfg.Collector.Timeout != 0 {
		t.Errorf("Expected no collector timeout by default, got %v", cfg.Collector.Timeout)
	}

	th := cfg.Thresholds
	if th.DailyGB != 100 || th.WeeklyGB != 500 || th.MonthlyGB != 2000 {
		t.Errorf("Expected thresholds 100/500/2000, got %v/%v/%v", th.DailyGB, th.WeeklyGB, th.MonthlyGB)
	}

	if cfg.Schedule.DailyReport != "0 9 * * *" || cfg.Schedule.WeeklyReport != "0 9 * * 1" ||
		cfg.Schedule.MonthlyReport != "0 9 1 * *" {
		t.Errorf("Unexpected schedule defaults: %+v", cfg.Schedule)
	}

	if cfg.HTTP.Listen != "0.0.0.0:3001" {
		t.Errorf("Expected listen 0.0.0.0:3001, got %s", cfg.HTTP.Listen)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestThresholdBytes(t *testing.T) {
	tests := []struct {
		gb   float64
		want uint64
	}{
		{1, 1 << 30},
		{0.5, 1 << 29},
		{100, 100 << 30},
		{0, 0},
		{-3, 0},
	}

	for _, tt := range tests {
		if got := ThresholdBytes(tt.gb); got != tt.want {
			t.Errorf("ThresholdBytes(%v) = %d, want %d", tt.gb, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty interface", func(c *Config) { c.Interface = "" }, "interface"},
		{"zero daily threshold", func(c *Config) { c.Thresholds.DailyGB = 0 }, "daily_gb"},
		{"negative monthly threshold", func(c *Config) { c.Thresholds.MonthlyGB = -1 }, "monthly_gb"},
		{"zero live sample", func(c *Config) { c.Collector.LiveSampleSeconds = 0 }, "live_sample_seconds"},
		{"unknown live source", func(c *Config) { c.Collector.LiveSource = "snmp" }, "live_source"},
		{"negative timeout", func(c *Config) { c.Collector.Timeout = -time.Second }, "timeout"},
		{"bad cron", func(c *Config) { c.Schedule.WeeklyReport = "every monday" }, "weekly_report"},
		{"six field cron", func(c *Config) { c.Schedule.DailyReport = "0 0 9 * * *" }, "daily_report"},
		{"bad http mode", func(c *Config) { c.HTTP.Mode = "prod" }, "http mode"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(dir, "nope.yaml"))
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Interface != "eth0" {
			t.Errorf("Expected defaults, got interface %s", cfg.Interface)
		}
	})

	t.Run("partial file keeps other defaults", func(t *testing.T) {
		path := writeFile(t, dir, "partial.yaml", `
interface: wlan0
thresholds:
  daily_gb: 5
collector:
  timeout: 30s
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Interface != "wlan0" || cfg.Thresholds.DailyGB != 5 {
			t.Errorf("File values not applied: %+v", cfg)
		}
		if cfg.Thresholds.WeeklyGB != 500 {
			t.Errorf("Expected default weekly threshold, got %v", cfg.Thresholds.WeeklyGB)
		}
		if cfg.Collector.Timeout != 30*time.Second {
			t.Errorf("Expected timeout 30s, got %v", cfg.Collector.Timeout)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeFile(t, dir, "bad.yaml", "interface: [unterminated")
		if _, err := LoadConfig(path); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeFile(t, dir, "invalid.yaml", "thresholds:\n  daily_gb: -1\n")
		if _, err := LoadConfig(path); err == nil {
			t.Error("Expected validation error")
		}
	})
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Interface = "enp3s0"
	cfg.Telegram.ChatID = "12345"

	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Interface != "enp3s0" || loaded.Telegram.ChatID != "12345" {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETWORK_INTERFACE", "ppp0")
	t.Setenv("DAILY_THRESHOLD_GB", "1.5")
	t.Setenv("WEEKLY_THRESHOLD_GB", "lots")
	t.Setenv("MONTHLY_REPORT_CRON", "30 8 1 * *")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	t.Setenv("PORT", "8080")

	cfg := DefaultConfig()
	warnings := cfg.ApplyEnv()

	if cfg.Interface != "ppp0" {
		t.Errorf("Interface = %s", cfg.Interface)
	}
	if cfg.Thresholds.DailyGB != 1.5 {
		t.Errorf("DailyGB = %v", cfg.Thresholds.DailyGB)
	}
	if cfg.Thresholds.WeeklyGB != 500 {
		t.Errorf("Unparsable WeeklyGB should keep default, got %v", cfg.Thresholds.WeeklyGB)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "WEEKLY_THRESHOLD_GB") {
		t.Errorf("warnings = %v", warnings)
	}
	if cfg.Schedule.MonthlyReport != "30 8 1 * *" {
		t.Errorf("MonthlyReport = %s", cfg.Schedule.MonthlyReport)
	}
	if cfg.Telegram.BotToken != "token" || cfg.Telegram.ChatID != "-100" {
		t.Errorf("Telegram = %+v", cfg.Telegram)
	}
	if cfg.HTTP.Listen != "0.0.0.0:8080" {
		t.Errorf("Listen = %s", cfg.HTTP.Listen)
	}
}

func TestWithPort(t *testing.T) {
	tests := []struct {
		listen  string
		port    string
		want    string
		wantErr bool
	}{
		{"0.0.0.0:3001", "9000", "0.0.0.0:9000", false},
		{":3001", "80", ":80", false},
		{"[::1]:3001", "81", "[::1]:81", false},
		{"0.0.0.0:3001", "http", "", true},
		{"0.0.0.0:3001", "70000", "", true},
	}

	for _, tt := range tests {
		got, err := WithPort(tt.listen, tt.port)
		if (err != nil) != tt.wantErr {
			t.Errorf("WithPort(%q, %q) error = %v", tt.listen, tt.port, err)
			continue
		}
		if got != tt.want {
			t.Errorf("WithPort(%q, %q) = %q, want %q", tt.listen, tt.port, got, tt.want)
		}
	}
}

func TestLoadWithEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "interface: wlan0\n")
	envPath := writeFile(t, dir, "test.env", "NETWORK_INTERFACE=eth1\nMONTHLY_THRESHOLD_GB=42\n")

	cfg, warnings, err := Load(cfgPath, envPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if cfg.Interface != "eth1" {
		t.Errorf("env should override file, got %s", cfg.Interface)
	}
	if cfg.Thresholds.MonthlyGB != 42 {
		t.Errorf("MonthlyGB = %v", cfg.Thresholds.MonthlyGB)
	}

	if _, _, err := Load(cfgPath, filepath.Join(dir, "missing.env")); err == nil {
		t.Error("Expected error for explicit missing env file")
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DAILY_REPORT_CRON", "not a cron")

	if _, _, err := Load(filepath.Join(t.TempDir(), "none.yaml"), ""); err == nil {
		t.Error("Expected validation error for bad cron from env")
	}
}

func TestGetConfigPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	paths := GetConfigPaths()

	if len(paths) == 0 {
		t.Fatal("GetConfigPaths() returned no paths")
	}
	if paths[0] != filepath.Join("/tmp/xdg", AppName, "config.yaml") {
		t.Errorf("first path = %s", paths[0])
	}
	if paths[len(paths)-1] != "./configs/config.yaml" {
		t.Errorf("last path = %s", paths[len(paths)-1])
	}
}

func TestWatch(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "interface: eth0\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c }, nil)
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case cfg := <-changes:
			if cfg.Interface != "wlan9" {
				t.Fatalf("reloaded interface = %s", cfg.Interface)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch() error = %v", err)
			}
			return
		case <-tick.C:
			// Keep writing until the watcher is registered and sees it.
			writeFile(t, dir, "config.yaml", "interface: wlan9\n")
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}

func TestWatchRequiresPath(t *testing.T) {
	if err := Watch(context.Background(), "", func(*Config) {}, nil); err == nil {
		t.Error("Expected error for empty path")
	}
}
