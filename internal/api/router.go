// Package api serves traffic statistics to the dashboard over HTTP.
package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timfallmk/traffic-watcher/internal/alert"
	"github.com/timfallmk/traffic-watcher/internal/format"
	"github.com/timfallmk/traffic-watcher/internal/logging"
	"github.com/timfallmk/traffic-watcher/internal/observability"
	"github.com/timfallmk/traffic-watcher/internal/traffic"
)

// Traffic is the aggregation surface the handlers read. *traffic.Engine
// satisfies it.
type Traffic interface {
	Summary(ctx context.Context, iface string) (traffic.Summary, error)
	Hourly(ctx context.Context, iface string) (traffic.Hourly, error)
	Daily(ctx context.Context, iface string) (traffic.Daily, error)
	Weekly(ctx context.Context, iface string) (traffic.Weekly, error)
	Monthly(ctx context.Context, iface string) (traffic.Monthly, error)
	Live(ctx context.Context, iface string) traffic.Live
	Interfaces(ctx context.Context) []string
}

// Options wires the router. Traffic and Interface are required; the rest
// may be zero.
type Options struct {
	Traffic    Traffic
	Interface  string
	Thresholds func() alert.Thresholds
	Health     *observability.HealthMonitor
	Metrics    *observability.ApplicationMetrics
	Logger     *logging.Logger
	StaticDir  string
	Now        func() time.Time
}

type handler struct {
	opts Options
}

// NewRouter builds the gin engine with every API route registered.
func NewRouter(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithComponent("api")

	r := gin.New()
	r.Use(Recovery(logger))
	r.Use(RequestLogger(logger, opts.Metrics))
	r.Use(CORS(DefaultCORSConfig()))

	h := &handler{opts: opts}

	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/health/components", h.components)
		api.GET("/metrics", h.metrics)
		api.GET("/thresholds", h.thresholds)
		api.GET("/interfaces", h.interfaces)

		t := api.Group("/traffic")
		t.GET("/summary", h.summary)
		t.GET("/hourly", h.hourly)
		t.GET("/daily", h.daily)
		t.GET("/weekly", h.weekly)
		t.GET("/monthly", h.monthly)
		t.GET("/live", h.live)
	}

	r.NoRoute(h.noRoute)

	return r
}

// view runs one aggregation and maps failures to 500.
func view[T any](c *gin.Context, fn func(ctx context.Context, iface string) (T, error), iface string) {
	result, err := fn(c.Request.Context(), iface)
	if err != nil {
		InternalError(c, err)
		return
	}
	Success(c, result)
}

func (h *handler) summary(c *gin.Context) { view(c, h.opts.Traffic.Summary, h.opts.Interface) }
func (h *handler) hourly(c *gin.Context)  { view(c, h.opts.Traffic.Hourly, h.opts.Interface) }
func (h *handler) daily(c *gin.Context)   { view(c, h.opts.Traffic.Daily, h.opts.Interface) }
func (h *handler) weekly(c *gin.Context)  { view(c, h.opts.Traffic.Weekly, h.opts.Interface) }
func (h *handler) monthly(c *gin.Context) { view(c, h.opts.Traffic.Monthly, h.opts.Interface) }

func (h *handler) live(c *gin.Context) {
	Success(c, h.opts.Traffic.Live(c.Request.Context(), h.opts.Interface))
}

func (h *handler) interfaces(c *gin.Context) {
	Success(c, h.opts.Traffic.Interfaces(c.Request.Context()))
}

func (h *handler) health(c *gin.Context) {
	Success(c, gin.H{
		"status":    "ok",
		"timestamp": h.opts.Now().UTC(),
	})
}

// ComponentsResponse is the body of /api/health/components.
type ComponentsResponse struct {
	Status     observability.HealthStatus            `json:"status"`
	Components map[string]*observability.HealthCheck `json:"components"`
}

func (h *handler) components(c *gin.Context) {
	if h.opts.Health == nil {
		Success(c, ComponentsResponse{Status: observability.StatusUnknown, Components: map[string]*observability.HealthCheck{}})
		return
	}

	var checks map[string]*observability.HealthCheck
	if c.Query("refresh") != "" {
		checks = h.opts.Health.CheckAll(c.Request.Context())
	} else {
		checks = h.opts.Health.GetHealth()
	}
	Success(c, ComponentsResponse{Status: h.opts.Health.GetOverallHealth(), Components: checks})
}

func (h *handler) metrics(c *gin.Context) {
	if h.opts.Metrics == nil {
		Success(c, gin.H{"metrics": []observability.Metric{}})
		return
	}
	h.opts.Metrics.RecordDaemonUptime()
	Success(c, gin.H{"metrics": h.opts.Metrics.Collector().Snapshot()})
}

// Limit is one configured threshold.
type Limit struct {
	Bytes     uint64 `json:"bytes"`
	Formatted string `json:"formatted"`
}

// ThresholdsResponse is the body of /api/thresholds.
type ThresholdsResponse struct {
	Interface string `json:"interface"`
	Daily     Limit  `json:"daily"`
	Weekly    Limit  `json:"weekly"`
	Monthly   Limit  `json:"monthly"`
}

func (h *handler) thresholds(c *gin.Context) {
	var th alert.Thresholds
	if h.opts.Thresholds != nil {
		th = h.opts.Thresholds()
	}
	Success(c, ThresholdsResponse{
		Interface: h.opts.Interface,
		Daily:     limit(th.Daily),
		Weekly:    limit(th.Weekly),
		Monthly:   limit(th.Monthly),
	})
}

func limit(b uint64) Limit {
	return Limit{Bytes: b, Formatted: format.Bytes(b)}
}

// noRoute serves the dashboard build when a static dir is configured. Unknown
// paths outside /api fall back to index.html so client-side routes resolve.
func (h *handler) noRoute(c *gin.Context) {
	path := c.Request.URL.Path
	if h.opts.StaticDir == "" || strings.HasPrefix(path, "/api/") || path == "/api" {
		NotFound(c, "not found")
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		NotFound(c, "not found")
		return
	}

	file := filepath.Join(h.opts.StaticDir, filepath.FromSlash(filepath.Clean("/"+path)))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}

	index := filepath.Join(h.opts.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		NotFound(c, "not found")
		return
	}
	c.File(index)
}
