package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/lllypuk/avatarconsole/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	// Logger is the structured logger for router events.
	Logger *slog.Logger

	// LoggingConfig is the logging middleware configuration.
	LoggingConfig middleware.LoggingConfig

	// RecoveryConfig is the recovery middleware configuration.
	RecoveryConfig middleware.RecoveryConfig

	// APIPrefix is the prefix for JSON routes.
	// Default is "/api".
	APIPrefix string
}

// DefaultRouterConfig returns a RouterConfig with sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Logger:         slog.Default(),
		LoggingConfig:  middleware.DefaultLoggingConfig(),
		RecoveryConfig: middleware.DefaultRecoveryConfig(),
		APIPrefix:      "/api",
	}
}

// Router manages the console's page and API route groups.
type Router struct {
	echo   *echo.Echo
	config RouterConfig
	logger *slog.Logger

	api *echo.Group
}

// NewRouter creates a new router with the given configuration.
func NewRouter(e *echo.Echo, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.APIPrefix == "" {
		config.APIPrefix = "/api"
	}

	r := &Router{
		echo:   e,
		config: config,
		logger: config.Logger,
	}

	// Recovery goes first to catch panics from everything below it.
	r.echo.Use(middleware.RecoveryWithConfig(r.config.RecoveryConfig))
	r.echo.Use(middleware.Logging(r.config.LoggingConfig))

	r.api = r.echo.Group(r.config.APIPrefix)

	return r
}

// Echo returns the underlying Echo instance.
func (r *Router) Echo() *echo.Echo {
	return r.echo
}

// Pages returns the root instance used for HTML pages and form posts.
func (r *Router) Pages() *echo.Echo {
	return r.echo
}

// API returns the JSON route group.
func (r *Router) API() *echo.Group {
	return r.api
}

// RouteRegistrar defines the interface for registering routes.
type RouteRegistrar interface {
	RegisterRoutes(r *Router)
}

// RegisterAll registers all route registrars with the router.
func (r *Router) RegisterAll(registrars ...RouteRegistrar) {
	for _, registrar := range registrars {
		registrar.RegisterRoutes(r)
	}
}

// PrintRoutes logs all registered routes at debug level.
func (r *Router) PrintRoutes() {
	for _, route := range r.echo.Routes() {
		r.logger.Debug("registered route",
			slog.String("method", route.Method),
			slog.String("path", route.Path),
			slog.String("name", route.Name),
		)
	}
}

// RegisterMetricsEndpoint exposes the gatherer's metrics at path.
// A nil gatherer serves the default registry.
func (r *Router) RegisterMetricsEndpoint(path string, gatherer prometheus.Gatherer) {
	if path == "" {
		path = "/metrics"
	}
	handler := promhttp.Handler()
	if gatherer != nil {
		handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	r.echo.GET(path, echo.WrapHandler(handler))
}
