package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lllypuk/avatarconsole/internal/config"
	"github.com/lllypuk/avatarconsole/internal/console"
	httphandler "github.com/lllypuk/avatarconsole/internal/handler/http"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/avatarapi"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/httpserver"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/metrics"
	"github.com/lllypuk/avatarconsole/web"
)

// componentUserService is the health component name of the remote user service.
const componentUserService = "user_service"

// defaultDrainTimeout bounds how long Close waits for in-flight backend calls.
const defaultDrainTimeout = 5 * time.Second

// ErrDrainTimeout is returned by Close when background calls outlive the drain timeout.
var ErrDrainTimeout = errors.New("timed out waiting for in-flight requests")

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Metrics
	Registry *prometheus.Registry
	Metrics  *metrics.ConsoleMetrics

	// Remote user service
	Client *avatarapi.Client

	// Console state
	Alerts  *console.AlertQueue
	Manager *console.Manager

	// HTTP
	TemplateRenderer *httphandler.TemplateRenderer
	ConsoleHandler   *httphandler.ConsoleHandler

	drainTimeout time.Duration
}

// Ensure Container implements httpserver.HealthChecker.
var _ httpserver.HealthChecker = (*Container)(nil)

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// WithDrainTimeout overrides how long Close waits for background calls.
func WithDrainTimeout(d time.Duration) ContainerOption {
	return func(c *Container) {
		c.drainTimeout = d
	}
}

// NewContainer creates a new dependency injection container.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config:       cfg,
		Logger:       slog.Default(),
		drainTimeout: defaultDrainTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.setupMetrics()
	c.setupConsole()

	if err := c.setupTemplateRenderer(); err != nil {
		return nil, fmt.Errorf("failed to setup template renderer: %w", err)
	}

	c.ConsoleHandler = httphandler.NewConsoleHandler(c.Manager, c.Alerts, c.TemplateRenderer, c.Logger)

	return c, nil
}

func (c *Container) setupMetrics() {
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.NewConsoleMetrics(c.Registry)
}

func (c *Container) setupConsole() {
	c.Client = avatarapi.NewClient(avatarapi.Config{
		BaseURL: c.Config.Backend.BaseURL,
		Timeout: c.Config.Backend.RequestTimeout,
	})

	policy := console.RetainRemoved
	if c.Config.Avatars.PruneRemoved {
		policy = console.PruneRemoved
	}

	c.Alerts = console.NewAlertQueue()
	c.Manager = console.NewManager(c.Client,
		console.WithLogger(c.Logger),
		console.WithAlerter(c.Alerts),
		console.WithMetrics(c.Metrics),
		console.WithStalePolicy(policy),
		console.WithGenerationGuard(c.Config.Avatars.DiscardStale),
	)

	c.Logger.Debug("console wired",
		slog.String("backend", c.Client.BaseURL()),
		slog.Bool("discard_stale", c.Config.Avatars.DiscardStale),
		slog.Bool("prune_removed", c.Config.Avatars.PruneRemoved),
	)
}

func (c *Container) setupTemplateRenderer() error {
	renderer, err := httphandler.NewTemplateRenderer(httphandler.TemplateRendererConfig{
		FS:      web.TemplatesFS,
		Logger:  c.Logger,
		DevMode: c.Config.App.DevMode,
	})
	if err != nil {
		return err
	}
	c.TemplateRenderer = renderer
	return nil
}

// Close waits for in-flight avatar fetches and uploads to finish.
func (c *Container) Close() error {
	c.Logger.Info("closing container resources...")

	if c.Manager == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		c.Manager.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.Logger.Info("all container resources closed")
		return nil
	case <-time.After(c.drainTimeout):
		return ErrDrainTimeout
	}
}

// IsReady implements httpserver.HealthChecker.
// The console is ready once a user list has been loaded.
func (c *Container) IsReady(ctx context.Context) bool {
	if c.Manager == nil {
		return false
	}
	loaded, err := c.Manager.LoadStatus()
	if !loaded && err != nil {
		c.Logger.WarnContext(ctx, "user service not loaded", slog.String("error", err.Error()))
	}
	return loaded
}

// GetHealthStatus implements httpserver.HealthChecker.
func (c *Container) GetHealthStatus(_ context.Context) []httpserver.ComponentStatus {
	status := httpserver.ComponentStatus{Name: componentUserService, Status: httpserver.StatusHealthy}

	if c.Manager == nil {
		status.Status = httpserver.StatusUnhealthy
		status.Message = "manager not initialized"
		return []httpserver.ComponentStatus{status}
	}

	loaded, err := c.Manager.LoadStatus()
	switch {
	case !loaded && err != nil:
		status.Status = httpserver.StatusUnhealthy
		status.Message = err.Error()
	case !loaded:
		status.Status = httpserver.StatusUnhealthy
		status.Message = "user list not loaded yet"
	case err != nil:
		status.Status = httpserver.StatusDegraded
		status.Message = "last reload failed: " + err.Error()
	}

	return []httpserver.ComponentStatus{status}
}
