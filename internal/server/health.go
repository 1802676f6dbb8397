package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker provides liveness and readiness endpoints for probes.
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker that starts ready.
func NewHealthChecker() *HealthChecker {
	h := &HealthChecker{startTime: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state. Shutdown flips it to false so probes
// stop routing traffic before the listener closes.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the JSON body for health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime,omitempty"`
}

// Register mounts the health endpoints on the router.
func (h *HealthChecker) Register(e *echo.Echo) {
	e.GET("/healthz", h.handleLiveness)
	e.GET("/readyz", h.handleReadiness)
}

// handleLiveness reports that the process is running. A failing liveness
// probe means the process should be restarted, so this never inspects state.
func (h *HealthChecker) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: healthStatusOK})
}

// handleReadiness reports whether the server should receive traffic.
func (h *HealthChecker) handleReadiness(c echo.Context) error {
	resp := HealthResponse{
		Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
	}
	if !h.ready.Load() {
		resp.Status = healthStatusShuttingDown
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	resp.Status = healthStatusOK
	return c.JSON(http.StatusOK, resp)
}
