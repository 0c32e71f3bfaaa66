package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. An empty path loads ./.env if
// present.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. Values that cannot be
// parsed are skipped; each one is reported in the returned warnings.
func (c *Config) ApplyEnv() []string {
	var warnings []string

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	gb := func(name string, dst *float64) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: not a positive number", name, v))
			return
		}
		*dst = f
	}

	str("NETWORK_INTERFACE", &c.Interface)
	str("VNSTAT_BIN", &c.Collector.Binary)
	gb("DAILY_THRESHOLD_GB", &c.Thresholds.DailyGB)
	gb("WEEKLY_THRESHOLD_GB", &c.Thresholds.WeeklyGB)
	gb("MONTHLY_THRESHOLD_GB", &c.Thresholds.MonthlyGB)
	str("DAILY_REPORT_CRON", &c.Schedule.DailyReport)
	str("WEEKLY_REPORT_CRON", &c.Schedule.WeeklyReport)
	str("MONTHLY_REPORT_CRON", &c.Schedule.MonthlyReport)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	str("STATIC_DIR", &c.HTTP.StaticDir)
	str("LOG_LEVEL", &c.Logging.Level)

	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		listen, err := WithPort(c.HTTP.Listen, port)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("ignoring PORT=%q: %v", port, err))
		} else {
			c.HTTP.Listen = listen
		}
	}

	return warnings
}

// WithPort replaces the port of a host:port listen address.
func WithPort(listen, port string) (string, error) {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("invalid port")
	}
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port), nil
}

// Load resolves the effective configuration: env file, YAML file over the
// defaults, then the environment. Warnings are non-fatal problems the caller
// should log.
func Load(path, envFile string) (*Config, []string, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	warnings := cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, warnings, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, warnings, nil
}
