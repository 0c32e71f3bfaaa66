package observability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/timfallmk/traffic-watcher/internal/format"
	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/stats"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
	StatusStarting  HealthStatus = "starting"
)

const defaultCheckTimeout = 30 * time.Second

// HealthCheck represents a single health check
type HealthCheck struct {
	Name        string        `json:"name"`
	Status      HealthStatus  `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"lastChecked"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// HealthChecker defines the interface for health checks
type HealthChecker interface {
	Check(ctx context.Context) error
	Name() string
	Timeout() time.Duration
}

// HealthMonitor runs registered checkers on an interval and keeps the latest
// result of each.
type HealthMonitor struct {
	checkers map[string]HealthChecker
	results  map[string]*HealthCheck
	logger   *logging.EventLogger
	metrics  *ApplicationMetrics
	mu       sync.RWMutex

	checkInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup

	// limits concurrent checks
	checkSem chan struct{}
}

// NewHealthMonitor creates a monitor. metrics may be nil. A non-positive
// checkInterval falls back to one minute.
func NewHealthMonitor(logger *logging.Logger, metrics *ApplicationMetrics, checkInterval time.Duration) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	hm := &HealthMonitor{
		checkers:      make(map[string]HealthChecker),
		results:       make(map[string]*HealthCheck),
		logger:        logging.NewEventLogger(logger),
		metrics:       metrics,
		checkInterval: checkInterval,
		ctx:           ctx,
		cancel:        cancel,
		checkSem:      make(chan struct{}, 5),
	}

	if checkInterval <= 0 {
		hm.checkInterval = time.Minute
		hm.logger.LogDaemon(logging.LevelWarn, "invalid health check interval provided, using default", "validate", map[string]interface{}{
			"provided_interval": checkInterval.String(),
			"default_interval":  hm.checkInterval.String(),
		})
	}

	return hm
}

// RegisterChecker registers a health checker, replacing any with the same name.
func (hm *HealthMonitor) RegisterChecker(checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkers[checker.Name()] = checker
	hm.results[checker.Name()] = &HealthCheck{
		Name:        checker.Name(),
		Status:      StatusStarting,
		LastChecked: time.Now(),
	}

	hm.logger.LogDaemon(logging.LevelInfo, "health checker registered", "register", map[string]interface{}{
		"checker": checker.Name(),
	})
}

// Start begins health monitoring
func (hm *HealthMonitor) Start() {
	hm.wg.Add(1)
	go hm.monitorLoop()

	hm.logger.LogDaemon(logging.LevelInfo, "health monitor started", "start", nil)
}

// Stop stops health monitoring and waits for in-flight checks.
func (hm *HealthMonitor) Stop() {
	hm.cancel()
	hm.wg.Wait()

	hm.logger.LogDaemon(logging.LevelInfo, "health monitor stopped", "stop", nil)
	hm.logger.Close()
}

// CheckAll runs every checker once and returns the fresh results.
func (hm *HealthMonitor) CheckAll(ctx context.Context) map[string]*HealthCheck {
	hm.runAllChecks(ctx)
	return hm.GetHealth()
}

// GetHealth returns the current health status of all components
func (hm *HealthMonitor) GetHealth() map[string]*HealthCheck {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]*HealthCheck, len(hm.results))
	for name, check := range hm.results {
		c := *check
		result[name] = &c
	}
	return result
}

// Names returns the registered checker names in sorted order.
func (hm *HealthMonitor) Names() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// GetOverallHealth returns the overall system health
func (hm *HealthMonitor) GetOverallHealth() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if len(hm.results) == 0 {
		return StatusUnknown
	}

	hasUnhealthy := false
	hasStarting := false

	for _, check := range hm.results {
		switch check.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusStarting:
			hasStarting = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasStarting {
		return StatusStarting
	}

	return StatusHealthy
}

// IsHealthy returns true if all components are healthy
func (hm *HealthMonitor) IsHealthy() bool {
	return hm.GetOverallHealth() == StatusHealthy
}

func (hm *HealthMonitor) monitorLoop() {
	defer hm.wg.Done()

	ticker := time.NewTicker(hm.checkInterval)
	defer ticker.Stop()

	hm.runAllChecks(hm.ctx)

	for {
		select {
		case <-hm.ctx.Done():
			return
		case <-ticker.C:
			hm.runAllChecks(hm.ctx)
		}
	}
}

func (hm *HealthMonitor) runAllChecks(ctx context.Context) {
	hm.mu.RLock()
	checkers := make([]HealthChecker, 0, len(hm.checkers))
	for _, checker := range hm.checkers {
		checkers = append(checkers, checker)
	}
	hm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, checker := range checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			select {
			case hm.checkSem <- struct{}{}:
				defer func() { <-hm.checkSem }()
				hm.runCheck(ctx, c)
			case <-ctx.Done():
			}
		}(checker)
	}
	wg.Wait()
}

func (hm *HealthMonitor) runCheck(parent context.Context, checker HealthChecker) {
	start := time.Now()

	timeout := checker.Timeout()
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	err := checker.Check(ctx)
	duration := time.Since(start)

	result := &HealthCheck{
		Name:        checker.Name(),
		LastChecked: time.Now(),
		Duration:    duration,
	}

	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		result.Error = err.Error()
	} else {
		result.Status = StatusHealthy
		result.Message = "OK"
	}

	hm.mu.Lock()
	hm.results[checker.Name()] = result
	hm.mu.Unlock()

	if hm.metrics != nil {
		hm.metrics.RecordHealthCheck(checker.Name(), err == nil, duration)
	}

	level := logging.LevelDebug
	if err != nil {
		level = logging.LevelWarn
	}

	hm.logger.LogDaemon(level, "health check completed", "health_check", map[string]interface{}{
		"checker":  checker.Name(),
		"status":   string(result.Status),
		"duration": duration.String(),
		"error":    errString(err),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// FuncChecker adapts a plain function to HealthChecker.
type FuncChecker struct {
	name    string
	timeout time.Duration
	fn      func(ctx context.Context) error
}

// NewFuncChecker creates a checker named name that runs fn.
func NewFuncChecker(name string, timeout time.Duration, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, timeout: timeout, fn: fn}
}

func (f *FuncChecker) Name() string           { return f.name }
func (f *FuncChecker) Timeout() time.Duration { return f.timeout }

func (f *FuncChecker) Check(ctx context.Context) error {
	if f.fn == nil {
		return errors.New("no check function configured")
	}
	return f.fn(ctx)
}

// CollectorHealthChecker verifies the statistics collector answers a one-day
// history query for the monitored interface.
type CollectorHealthChecker struct {
	source  stats.Source
	iface   string
	timeout time.Duration
}

// NewCollectorHealthChecker creates a collector checker with a 10 second timeout.
func NewCollectorHealthChecker(source stats.Source, iface string) *CollectorHealthChecker {
	return &CollectorHealthChecker{source: source, iface: iface, timeout: 10 * time.Second}
}

func (c *CollectorHealthChecker) Name() string           { return "collector" }
func (c *CollectorHealthChecker) Timeout() time.Duration { return c.timeout }

func (c *CollectorHealthChecker) Check(ctx context.Context) error {
	if _, err := c.source.Query(ctx, c.iface, stats.Day, 1); err != nil {
		return err
	}
	return nil
}

// InterfaceHealthChecker verifies the monitored interface exists on the host.
type InterfaceHealthChecker struct {
	iface   string
	list    func(ctx context.Context) ([]string, error)
	timeout time.Duration
}

// NewInterfaceHealthChecker checks iface against the host's interface list.
// A nil list uses stats.HostInterfaces.
func NewInterfaceHealthChecker(iface string, list func(ctx context.Context) ([]string, error)) *InterfaceHealthChecker {
	if list == nil {
		list = stats.HostInterfaces
	}
	return &InterfaceHealthChecker{iface: iface, list: list, timeout: 2 * time.Second}
}

func (i *InterfaceHealthChecker) Name() string           { return "interface" }
func (i *InterfaceHealthChecker) Timeout() time.Duration { return i.timeout }

func (i *InterfaceHealthChecker) Check(ctx context.Context) error {
	names, err := i.list(ctx)
	if err != nil {
		return fmt.Errorf("list host interfaces: %w", err)
	}
	if !slices.Contains(names, i.iface) {
		return fmt.Errorf("interface %q not present on host", i.iface)
	}
	return nil
}

// DefaultDatabaseDir is where vnstat keeps its database.
const DefaultDatabaseDir = "/var/lib/vnstat"

// DiskSpaceHealthChecker verifies there is at least minFreeBytes free on the
// filesystem holding path.
type DiskSpaceHealthChecker struct {
	name         string
	path         string
	minFreeBytes uint64
	timeout      time.Duration
	statfs       func(path string) (total, free uint64, err error)
}

// NewDiskSpaceHealthChecker creates a disk space checker with a 2 second timeout.
func NewDiskSpaceHealthChecker(name, path string, minFreeBytes uint64) *DiskSpaceHealthChecker {
	return &DiskSpaceHealthChecker{
		name:         name,
		path:         path,
		minFreeBytes: minFreeBytes,
		timeout:      2 * time.Second,
		statfs:       diskFreeBytes,
	}
}

func (d *DiskSpaceHealthChecker) Name() string           { return d.name }
func (d *DiskSpaceHealthChecker) Timeout() time.Duration { return d.timeout }

func (d *DiskSpaceHealthChecker) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, free, err := d.statfs(d.path)
	if err != nil {
		return fmt.Errorf("statfs %s: %w", d.path, err)
	}
	if free < d.minFreeBytes {
		return fmt.Errorf("only %s free on %s, need %s", format.Bytes(free), d.path, format.Bytes(d.minFreeBytes))
	}
	return nil
}
