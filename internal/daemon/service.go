package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/takama/daemon"

	"github.com/timfallmk/traffic-watcher/internal/alert"
	"github.com/timfallmk/traffic-watcher/internal/api"
	"github.com/timfallmk/traffic-watcher/internal/bot"
	"github.com/timfallmk/traffic-watcher/internal/config"
	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/notify"
	"github.com/timfallmk/traffic-watcher/internal/observability"
	"github.com/timfallmk/traffic-watcher/internal/report"
	"github.com/timfallmk/traffic-watcher/internal/scheduler"
	"github.com/timfallmk/traffic-watcher/internal/stats"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = time.Minute
	metricsFlush        = 5 * time.Minute
	minDatabaseFree     = 100 << 20
)

// Service runs the traffic watcher: HTTP API, scheduled alert checks and
// reports, chat commands and health monitoring. It also manages the system
// service registration.
type Service struct {
	daemon.Daemon

	config     *config.Config
	configPath string
	envFile    string
	mu         sync.RWMutex

	logger     *logging.Logger
	ownsLogger bool
	events     *logging.EventLogger
	collector  *observability.MetricsCollector
	metrics    *observability.ApplicationMetrics
	health     *observability.HealthMonitor

	source    stats.Source
	engine    *traffic.Engine
	sink      notify.Sink
	state     *alert.State
	alerts    *alert.Engine
	reporter  *report.Reporter
	scheduler *scheduler.Scheduler
	clock     alert.Clock

	botAPI bot.API
	bot    *bot.Bot

	server   *http.Server
	listener net.Listener

	initialized bool
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopCh      chan struct{}
	stopOnce    sync.Once

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Service.
type Option func(*Service)

// WithConfigPath sets the file reloaded on SIGHUP and watched for changes.
func WithConfigPath(path string) Option {
	return func(s *Service) { s.configPath = path }
}

// WithEnvFile sets the env file re-read on reload.
func WithEnvFile(path string) Option {
	return func(s *Service) { s.envFile = path }
}

// WithLogger uses logger instead of building one from the configuration.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSource replaces the vnstat collector.
func WithSource(src stats.Source) Option {
	return func(s *Service) { s.source = src }
}

// WithSink replaces the notification sink chosen from the configuration.
func WithSink(sink notify.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithBotAPI uses api for Telegram instead of connecting with the token.
func WithBotAPI(a bot.API) Option {
	return func(s *Service) { s.botAPI = a }
}

// WithClock sets the clock alert periods are computed from.
func WithClock(c alert.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewService(cfg *config.Config, opts ...Option) (*Service, error) {
	d, err := daemon.New(cfg.Daemon.Name, cfg.Daemon.Description, daemon.SystemDaemon)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	service := &Service{
		Daemon: d,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
		state:  alert.NewState(),
	}
	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Initialize builds every component without starting any of them. It is
// safe to call more than once.
func (s *Service) Initialize() error {
	if s.initialized {
		return nil
	}

	cfg := s.Config()

	if s.logger == nil {
		logger, err := logging.NewLogger(loggerConfig(cfg.Logging))
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		s.logger = logger
		s.ownsLogger = true
	}
	logging.SetGlobalLogger(s.logger)
	s.events = logging.NewEventLogger(s.logger)

	s.collector = observability.NewMetricsCollector(s.logger, metricsFlush)
	s.metrics = observability.NewApplicationMetrics(s.collector)

	if s.source == nil {
		s.source = newSource(cfg)
	}
	s.source = observability.InstrumentSource(s.source, s.metrics)
	trafficOpts := []traffic.Option{traffic.WithLiveSeconds(cfg.Collector.LiveSampleSeconds)}
	if s.clock != nil {
		trafficOpts = append(trafficOpts, traffic.WithNow(s.clock.Now))
	}
	s.engine = traffic.NewEngine(s.source, trafficOpts...)

	s.connectTelegram(cfg)
	if s.sink == nil {
		s.sink = s.newSink(cfg)
	}
	s.sink = observability.InstrumentSink(s.sink, s.metrics)

	alertOpts := []alert.Option{
		alert.WithLogger(s.logger),
		alert.WithEventLogger(s.events),
		alert.WithObserver(s.metrics),
	}
	if s.clock != nil {
		alertOpts = append(alertOpts, alert.WithClock(s.clock))
	}
	s.alerts = alert.NewEngine(s.engine, s.sink, s.state, cfg.Interface, cfg.Telegram.ChatID, thresholds(cfg), alertOpts...)
	s.reporter = report.NewReporter(s.engine, s.sink, cfg.Interface, cfg.Telegram.ChatID)

	s.scheduler = scheduler.New(s.logger)
	if err := s.scheduler.Add(scheduler.AlertCheckJob, scheduler.AlertCheckSpec, s.checkAlerts); err != nil {
		return err
	}
	if err := s.scheduleReports(cfg.Schedule); err != nil {
		return err
	}

	s.health = observability.NewHealthMonitor(s.logger, s.metrics, healthCheckInterval)
	s.health.RegisterChecker(observability.NewCollectorHealthChecker(s.source, cfg.Interface))
	s.health.RegisterChecker(observability.NewInterfaceHealthChecker(cfg.Interface, nil))
	if _, err := os.Stat(observability.DefaultDatabaseDir); err == nil {
		s.health.RegisterChecker(observability.NewDiskSpaceHealthChecker("database-disk", observability.DefaultDatabaseDir, minDatabaseFree))
	}

	gin.SetMode(cfg.HTTP.Mode)
	router := api.NewRouter(api.Options{
		Traffic:    s.engine,
		Interface:  cfg.Interface,
		Thresholds: s.alerts.Thresholds,
		Health:     s.health,
		Metrics:    s.metrics,
		Logger:     s.logger,
		StaticDir:  cfg.HTTP.StaticDir,
	})
	s.server = &http.Server{
		Addr:         cfg.HTTP.Listen,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	if s.botAPI != nil && cfg.Telegram.Commands {
		s.bot = bot.New(s.botAPI, s.engine, cfg.Interface, s.alerts.Thresholds, s.logger)
	}

	s.initialized = true
	s.events.LogDaemon(logging.LevelInfo, "daemon initialized", "initialize", map[string]interface{}{
		"interface": cfg.Interface,
		"listen":    cfg.HTTP.Listen,
		"bot":       s.bot != nil,
	})
	return nil
}

func newSource(cfg *config.Config) stats.Source {
	opts := []stats.Option{stats.WithTimeout(cfg.Collector.Timeout)}
	if cfg.Collector.LiveSource == config.LiveSourceHost {
		opts = append(opts, stats.WithLiveSampler(stats.NewHostSampler()))
	}
	return stats.NewVnstatSource(cfg.Collector.Binary, opts...)
}

// connectTelegram logs in with the bot token unless an API was injected.
// A failed login leaves notifications on the log sink.
func (s *Service) connectTelegram(cfg *config.Config) {
	if s.botAPI != nil || cfg.Telegram.BotToken == "" {
		return
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		s.events.LogError(err, "telegram login failed, notifications will be logged only", nil)
		return
	}
	s.botAPI = botAPI
}

func (s *Service) newSink(cfg *config.Config) notify.Sink {
	if s.botAPI == nil || cfg.Telegram.ChatID == "" {
		s.logger.Warn("telegram not configured, notifications will be logged only")
		return notify.NewLogSink(s.logger)
	}
	return notify.NewTelegramSink(s.botAPI)
}

func (s *Service) Start() error {
	if err := s.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.serveHTTP()

	s.scheduler.Start()
	s.health.Start()

	if s.bot != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.bot.Run(s.ctx); err != nil {
				s.events.LogError(err, "bot stopped", nil)
			}
		}()
	}

	s.wg.Add(1)
	go s.handleSignals()

	if s.configPath != "" {
		s.wg.Add(1)
		go s.watchConfig()
	}

	s.events.LogDaemon(logging.LevelInfo, "daemon started", "start", map[string]interface{}{
		"listen": ln.Addr().String(),
	})
	return nil
}

func (s *Service) serveHTTP() {
	defer s.wg.Done()
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.events.LogError(err, "http server failed", nil)
		s.requestStop()
	}
}

// Stop shuts everything down and waits for background work. Later calls
// return the first call's result.
func (s *Service) Stop() error {
	s.shutdownOnce.Do(func() { s.shutdownErr = s.shutdown() })
	return s.shutdownErr
}

func (s *Service) shutdown() error {
	s.requestStop()
	s.cancel()

	if !s.initialized {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if s.listener != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.scheduler.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	s.health.Stop()

	s.wg.Wait()

	s.collector.Close()
	s.events.LogDaemon(logging.LevelInfo, "daemon stopped", "stop", nil)
	s.events.Close()
	if s.ownsLogger {
		_ = s.logger.Close()
	}

	return errors.Join(errs...)
}

// Run starts the service and blocks until a stop is requested.
func (s *Service) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	<-s.stopCh
	return s.Stop()
}

// Shutdown asks a running service to stop.
func (s *Service) Shutdown() {
	s.requestStop()
}

func (s *Service) requestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Service) handleSignals() {
	defer s.wg.Done()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-s.ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				s.events.LogDaemon(logging.LevelInfo, "signal received, shutting down", "signal", map[string]interface{}{
					"signal": sig.String(),
				})
				s.requestStop()
				return
			case syscall.SIGHUP:
				if err := s.reloadConfig(); err != nil {
					s.events.LogError(err, "failed to reload config", nil)
				}
			}
		}
	}
}

func (s *Service) watchConfig() {
	defer s.wg.Done()

	err := config.Watch(s.ctx, s.configPath, func(cfg *config.Config) {
		s.Reload(cfg)
	}, func(err error) {
		s.metrics.RecordConfigReload(false, 0)
		s.events.LogConfig(logging.LevelWarn, "config change rejected: "+err.Error(), s.configPath, nil)
	})
	if err != nil {
		s.events.LogError(err, "config watch stopped", nil)
	}
}

func (s *Service) Install() (string, error) {
	args := []string{"run"}
	if s.configPath != "" {
		args = append(args, "--config", s.configPath)
	}
	if s.envFile != "" {
		args = append(args, "--env-file", s.envFile)
	}
	return s.Daemon.Install(args...)
}

func (s *Service) Remove() (string, error) {
	return s.Daemon.Remove()
}

func (s *Service) Status() (string, error) {
	return s.Daemon.Status()
}

func (s *Service) StartService() (string, error) {
	return s.Daemon.Start()
}

func (s *Service) StopService() (string, error) {
	return s.Daemon.Stop()
}

// Config returns the configuration currently in force.
func (s *Service) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Addr is the bound HTTP address once started.
func (s *Service) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Service) Engine() *traffic.Engine         { return s.engine }
func (s *Service) Alerts() *alert.Engine           { return s.alerts }
func (s *Service) Reporter() *report.Reporter      { return s.reporter }
func (s *Service) Scheduler() *scheduler.Scheduler { return s.scheduler }

func loggerConfig(c config.LoggingConfig) logging.Config {
	return logging.Config{
		Level:     logging.LogLevel(c.Level),
		Format:    logging.LogFormat(c.Format),
		Output:    c.Output,
		AddSource: c.AddSource,
	}
}

func thresholds(cfg *config.Config) alert.Thresholds {
	return alert.Thresholds{
		Daily:   config.ThresholdBytes(cfg.Thresholds.DailyGB),
		Weekly:  config.ThresholdBytes(cfg.Thresholds.WeeklyGB),
		Monthly: config.ThresholdBytes(cfg.Thresholds.MonthlyGB),
	}
}
