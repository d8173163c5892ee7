package main

import (
	httphandler "github.com/lllypuk/avatarconsole/internal/handler/http"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/httpserver"
	"github.com/lllypuk/avatarconsole/internal/middleware"
	"github.com/lllypuk/avatarconsole/web"
)

// SetupRoutes configures middleware and every console route on the server.
func SetupRoutes(c *Container, server *httpserver.Server) *httpserver.Router {
	e := server.Echo()

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.Logger = c.Logger
	if c.Config.Metrics.Enabled {
		loggingConfig.SkipPaths = append(loggingConfig.SkipPaths, c.Config.Metrics.Path)
	}

	recoveryConfig := middleware.DefaultRecoveryConfig()
	recoveryConfig.Logger = c.Logger

	router := httpserver.NewRouter(e, httpserver.RouterConfig{
		Logger:         c.Logger,
		LoggingConfig:  loggingConfig,
		RecoveryConfig: recoveryConfig,
		APIPrefix:      "/api",
	})

	e.Renderer = c.TemplateRenderer

	if err := httphandler.SetupStaticRoutes(e, web.StaticFS); err != nil {
		c.Logger.Error("failed to setup static routes", "error", err)
	}

	router.RegisterHealthEndpointsWithChecker(c)

	if c.Config.Metrics.Enabled {
		router.RegisterMetricsEndpoint(c.Config.Metrics.Path, c.Registry)
	}

	router.RegisterAll(c.ConsoleHandler)

	if c.Config.IsDevelopment() {
		router.PrintRoutes()
	}

	return router
}
