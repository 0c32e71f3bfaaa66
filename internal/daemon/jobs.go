package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/timfallmk/traffic-watcher/internal/config"
	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/report"
	"github.com/timfallmk/traffic-watcher/internal/scheduler"
)

func (s *Service) checkAlerts(ctx context.Context) {
	for _, a := range s.alerts.Tick(ctx) {
		s.logger.Debug("alert fired", "kind", string(a.Kind), "period", a.PeriodKey, "delivered", a.Delivered())
	}
}

func (s *Service) scheduleReports(sc config.ScheduleConfig) error {
	jobs := []struct {
		name string
		spec string
		kind report.Kind
	}{
		{scheduler.DailyReportJob, sc.DailyReport, report.Daily},
		{scheduler.WeeklyReportJob, sc.WeeklyReport, report.Weekly},
		{scheduler.MonthlyReportJob, sc.MonthlyReport, report.Monthly},
	}
	for _, j := range jobs {
		if err := s.scheduler.Add(j.name, j.spec, s.reportJob(j.kind)); err != nil {
			return err
		}
	}
	return nil
}

// reportJob sends one report. Failures are logged and wait for the next slot.
func (s *Service) reportJob(kind report.Kind) func(context.Context) {
	return func(ctx context.Context) {
		err := s.reporter.Send(ctx, kind)
		s.metrics.RecordReport(string(kind), err == nil)
		if err != nil {
			s.events.LogReport(logging.LevelWarn, "report failed", string(kind), err)
			return
		}
		s.events.LogReport(logging.LevelInfo, "report sent", string(kind), nil)
	}
}

// Reload applies cfg to the running service: alert limits are swapped and
// report schedules re-registered. Alert state is kept. Interface, listen
// address and chat destination only change on restart.
func (s *Service) Reload(cfg *config.Config) {
	start := time.Now()

	s.mu.Lock()
	prev := s.config
	s.config = cfg
	s.mu.Unlock()

	if !s.initialized {
		return
	}

	s.alerts.SetThresholds(thresholds(cfg))

	err := s.scheduleReports(cfg.Schedule)
	s.metrics.RecordConfigReload(err == nil, time.Since(start))
	if err != nil {
		s.events.LogConfig(logging.LevelWarn, "report schedules not updated: "+err.Error(), s.configPath, nil)
		return
	}

	if prev.Interface != cfg.Interface || prev.HTTP.Listen != cfg.HTTP.Listen || prev.Telegram.ChatID != cfg.Telegram.ChatID {
		s.logger.Warn("interface, listen address and chat id changes take effect after restart")
	}

	s.events.LogConfig(logging.LevelInfo, "configuration reloaded", s.configPath, map[string]interface{}{
		"daily_gb":   cfg.Thresholds.DailyGB,
		"weekly_gb":  cfg.Thresholds.WeeklyGB,
		"monthly_gb": cfg.Thresholds.MonthlyGB,
	})
}

func (s *Service) reloadConfig() error {
	cfg, warnings, err := config.Load(s.configPath, s.envFile)
	if err != nil {
		s.metrics.RecordConfigReload(false, 0)
		return fmt.Errorf("failed to load config: %w", err)
	}
	for _, w := range warnings {
		s.logger.Warn(w)
	}
	s.Reload(cfg)
	return nil
}
