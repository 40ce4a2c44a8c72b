// Package handlers holds the gin handlers of the quotes API.
package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/quotes-api/internal/ports"
)

// BuildInfo describes the running binary. Version, Commit and BuildTime are
// set through -ldflags at build time.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo fills GoVersion from the runtime.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime, GoVersion: runtime.Version()}
}

// HealthHandler serves the operational endpoints under /-/.
type HealthHandler struct {
	registry ports.HealthRegistry
	build    BuildInfo
	metrics  http.Handler
}

// HealthOption customises a HealthHandler.
type HealthOption func(*HealthHandler)

// WithGatherer serves /-/metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) HealthOption {
	return func(h *HealthHandler) {
		h.metrics = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
}

// NewHealthHandler reports readiness from registry and build details from
// build.
func NewHealthHandler(registry ports.HealthRegistry, build BuildInfo, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		registry: registry,
		build:    build,
		metrics:  promhttp.Handler(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Register mounts live, ready, build and metrics on rg.
func (h *HealthHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/live", h.Liveness)
	rg.GET("/ready", h.Readiness)
	rg.GET("/build", h.Build)
	rg.GET("/metrics", gin.WrapH(h.metrics))
}

// Liveness answers as long as the process serves HTTP. The store is not
// consulted.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type readinessResponse struct {
	Status    ports.HealthStatus            `json:"status"`
	Checks    map[string]*ports.CheckResult `json:"checks,omitempty"`
	CheckedAt time.Time                     `json:"checkedAt"`
}

// Readiness answers 503 while any registered check fails, for example after
// the quote store was closed.
func (h *HealthHandler) Readiness(c *gin.Context) {
	result := h.registry.CheckAll(c.Request.Context())

	code := http.StatusOK
	if result.Status != ports.HealthStatusHealthy {
		code = http.StatusServiceUnavailable
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(code, readinessResponse{Status: result.Status, Checks: result.Checks, CheckedAt: result.Timestamp})
}

func (h *HealthHandler) Build(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}
