// Package httpserver provides HTTP server infrastructure components.
package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// ComponentStatus is the state of one dependency, e.g. the user service.
type ComponentStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components,omitempty"`
}

// HealthChecker reports readiness of the console and its dependencies.
type HealthChecker interface {
	// IsReady reports whether the console can serve operators.
	IsReady(ctx context.Context) bool

	// GetHealthStatus returns the status of each dependency.
	GetHealthStatus(ctx context.Context) []ComponentStatus
}

// OverallStatus folds component statuses into one. Any unhealthy component
// makes the whole unhealthy; otherwise any degraded one makes it degraded.
func OverallStatus(components []ComponentStatus) string {
	status := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// RegisterHealthEndpointsWithChecker registers:
//   - GET /health: liveness, 200 while the process runs
//   - GET /ready: 200 once checker is ready, 503 before
//   - GET /health/details: per-component status, 503 when any is unhealthy
//
// A nil checker is always ready and reports no components.
func (r *Router) RegisterHealthEndpointsWithChecker(checker HealthChecker) {
	components := func(ctx context.Context) []ComponentStatus {
		if checker == nil {
			return nil
		}
		return checker.GetHealthStatus(ctx)
	}

	r.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: StatusHealthy})
	})

	r.echo.GET("/ready", func(c echo.Context) error {
		ctx := c.Request().Context()

		resp := HealthResponse{Status: StatusReady, Components: components(ctx)}
		if checker != nil && !checker.IsReady(ctx) {
			resp.Status = StatusNotReady
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		return c.JSON(http.StatusOK, resp)
	})

	r.echo.GET("/health/details", func(c echo.Context) error {
		comps := components(c.Request().Context())

		resp := HealthResponse{Status: OverallStatus(comps), Components: comps}
		if resp.Status == StatusUnhealthy {
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		return c.JSON(http.StatusOK, resp)
	})
}
