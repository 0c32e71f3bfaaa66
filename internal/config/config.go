package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// AppName names the configuration directory and the default service.
const AppName = "traffic-watcher"

// Live sources for the live bandwidth measurement.
const (
	LiveSourceVnstat = "vnstat"
	LiveSourceHost   = "host"
)

const bytesPerGB = 1024 * 1024 * 1024

type Config struct {
	Interface  string          `yaml:"interface"`
	Collector  CollectorConfig `yaml:"collector"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Schedule   ScheduleConfig  `yaml:"schedule"`
	HTTP       HTTPConfig      `yaml:"http"`
	Telegram   TelegramConfig  `yaml:"telegram"`
	Daemon     DaemonConfig    `yaml:"daemon"`
	Logging    LoggingConfig   `yaml:"logging"`
}

type CollectorConfig struct {
	Binary            string        `yaml:"binary"`
	LiveSource        string        `yaml:"live_source"`
	LiveSampleSeconds int           `yaml:"live_sample_seconds"`
	Timeout           time.Duration `yaml:"timeout"`
}

// ThresholdConfig holds usage limits in gigabytes (1024^3 bytes).
type ThresholdConfig struct {
	DailyGB   float64 `yaml:"daily_gb"`
	WeeklyGB  float64 `yaml:"weekly_gb"`
	MonthlyGB float64 `yaml:"monthly_gb"`
}

// ScheduleConfig holds standard five-field cron expressions for reports.
type ScheduleConfig struct {
	DailyReport   string `yaml:"daily_report"`
	WeeklyReport  string `yaml:"weekly_report"`
	MonthlyReport string `yaml:"monthly_report"`
}

type HTTPConfig struct {
	Listen       string        `yaml:"listen"`
	Mode         string        `yaml:"mode"`
	StaticDir    string        `yaml:"static_dir"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	Commands bool   `yaml:"commands"`
}

type DaemonConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

func DefaultConfig() *Config {
	return &Config{
		Interface: "eth0",
		Collector: CollectorConfig{
			Binary:            "vnstat",
			LiveSource:        LiveSourceVnstat,
			LiveSampleSeconds: 2,
			Timeout:           0,
		},
		Thresholds: ThresholdConfig{
			DailyGB:   100,
			WeeklyGB:  500,
			MonthlyGB: 2000,
		},
		Schedule: ScheduleConfig{
			DailyReport:   "0 9 * * *",
			WeeklyReport:  "0 9 * * 1",
			MonthlyReport: "0 9 1 * *",
		},
		HTTP: HTTPConfig{
			Listen:       "0.0.0.0:3001",
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Telegram: TelegramConfig{
			Commands: true,
		},
		Daemon: DaemonConfig{
			Name:        AppName,
			Description: "Network interface traffic reporter and usage alerts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// ThresholdBytes converts a gigabyte limit to bytes.
func ThresholdBytes(gb float64) uint64 {
	if gb <= 0 {
		return 0
	}
	return uint64(gb * bytesPerGB)
}

// LoadConfig reads the YAML file at path over the defaults. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = getDefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) SaveConfig(path string) error {
	if path == "" {
		path = getDefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("interface must not be empty")
	}

	if c.Collector.Binary == "" {
		return fmt.Errorf("collector binary must not be empty")
	}

	if c.Collector.LiveSampleSeconds <= 0 {
		return fmt.Errorf("collector live_sample_seconds must be positive")
	}

	if c.Collector.Timeout < 0 {
		return fmt.Errorf("collector timeout must not be negative")
	}

	validSources := map[string]bool{
		LiveSourceVnstat: true,
		LiveSourceHost:   true,
	}
	if !validSources[c.Collector.LiveSource] {
		return fmt.Errorf("invalid collector live_source: %s", c.Collector.LiveSource)
	}

	thresholds := map[string]float64{
		"daily_gb":   c.Thresholds.DailyGB,
		"weekly_gb":  c.Thresholds.WeeklyGB,
		"monthly_gb": c.Thresholds.MonthlyGB,
	}
	for name, v := range thresholds {
		if v <= 0 {
			return fmt.Errorf("thresholds %s must be positive", name)
		}
	}

	schedules := []struct {
		name string
		spec string
	}{
		{"daily_report", c.Schedule.DailyReport},
		{"weekly_report", c.Schedule.WeeklyReport},
		{"monthly_report", c.Schedule.MonthlyReport},
	}
	for _, s := range schedules {
		if _, err := cron.ParseStandard(s.spec); err != nil {
			return fmt.Errorf("invalid schedule %s %q: %w", s.name, s.spec, err)
		}
	}

	if c.HTTP.Listen == "" {
		return fmt.Errorf("http listen address must not be empty")
	}

	validModes := map[string]bool{
		"debug":   true,
		"release": true,
		"test":    true,
	}
	if !validModes[c.HTTP.Mode] {
		return fmt.Errorf("invalid http mode: %s", c.HTTP.Mode)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

func getDefaultConfigPath() string {
	if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
		return filepath.Join(configDir, AppName, "config.yaml")
	}

	if homeDir := os.Getenv("HOME"); homeDir != "" {
		return filepath.Join(homeDir, ".config", AppName, "config.yaml")
	}

	return "./config.yaml"
}

func GetConfigPaths() []string {
	var paths []string

	paths = append(paths, getDefaultConfigPath())

	if homeDir := os.Getenv("HOME"); homeDir != "" && os.Getenv("XDG_CONFIG_HOME") != "" {
		paths = append(paths, filepath.Join(homeDir, ".config", AppName, "config.yaml"))
	}

	paths = append(paths, "/etc/"+AppName+"/config.yaml")
	paths = append(paths, "/usr/local/etc/"+AppName+"/config.yaml")
	paths = append(paths, "./configs/config.yaml")

	return paths
}

func FindConfig() (string, error) {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return path, nil // fallback to original path
			}
			return absPath, nil
		}
	}
	return "", fmt.Errorf("no config file found in standard locations")
}
