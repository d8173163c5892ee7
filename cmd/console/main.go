// Package main provides the avatar console server entry point.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lllypuk/avatarconsole/internal/config"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/httpserver"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		//nolint:sloglint // No context available before logger setup
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	logger.Info("starting avatar console",
		slog.String("version", "0.1.0"),
		slog.String("environment", getEnvironment(cfg)),
		slog.String("backend", cfg.Backend.BaseURL),
	)

	container, err := NewContainer(cfg, WithLogger(logger))
	if err != nil {
		logger.Error("failed to build container", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newServer(cfg, logger)
	SetupRoutes(container, server)

	// The first user list load runs beside the listener. Its failure only
	// leaves the page empty until the operator reloads.
	go func() {
		_ = container.Manager.LoadUsers(ctx)
	}()

	go gracefulShutdown(ctx, cancel, server, container, logger)

	if serverErr := server.Start(); serverErr != nil {
		logger.Error("server error", slog.String("error", serverErr.Error()))
		cancel()
		_ = container.Close()
		os.Exit(1) //nolint:gocritic // Intentional exit after cleanup
	}
}

// newServer builds the HTTP server from the server section of the configuration.
func newServer(cfg *config.Config, logger *slog.Logger) *httpserver.Server {
	return httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		BodyLimit:       cfg.Server.UploadLimit,
	}, logger)
}

// setupLogger creates and configures the structured logger based on configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	level := parseLogLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.IsDevelopment(),
	}

	switch cfg.Log.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default: // "json" or any other value defaults to JSON
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnvironment returns the environment name based on configuration.
func getEnvironment(cfg *config.Config) string {
	if cfg.IsDevelopment() {
		return "development"
	}
	return "production"
}

// gracefulShutdown handles graceful shutdown on OS signals.
func gracefulShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	server *httpserver.Server,
	container *Container,
	logger *slog.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	shutdownLogCtx := context.Background()

	select {
	case sig := <-quit:
		logger.InfoContext(shutdownLogCtx, "received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.InfoContext(shutdownLogCtx, "context cancelled, initiating shutdown")
	}

	// 1. Stop accepting new requests
	if err := server.Shutdown(shutdownLogCtx); err != nil {
		logger.ErrorContext(shutdownLogCtx, "server shutdown error", slog.String("error", err.Error()))
	}

	// 2. Cancel the main context so the initial load stops
	cancel()

	// 3. Wait for in-flight avatar fetches and uploads
	if err := container.Close(); err != nil {
		logger.ErrorContext(shutdownLogCtx, "container close error", slog.String("error", err.Error()))
	}

	logger.InfoContext(shutdownLogCtx, "server shutdown complete")
}
