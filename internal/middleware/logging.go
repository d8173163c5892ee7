// Package middleware provides echo middleware for the console server.
package middleware

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HTTP status code thresholds for log levels.
const (
	statusClientError = 400
	statusServerError = 500
)

const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the context key for request ID.
	RequestIDKey = "request_id"
)

// LoggingConfig holds configuration for the logging middleware.
type LoggingConfig struct {
	Logger *slog.Logger

	// SkipPaths are exact paths that are never logged.
	SkipPaths []string

	// SkipPrefixes are path prefixes that are never logged, e.g. static assets.
	SkipPrefixes []string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Logger:       slog.Default(),
		SkipPaths:    []string{"/health", "/ready", "/metrics"},
		SkipPrefixes: []string{"/static/"},
	}
}

// Logging returns a middleware that logs HTTP requests with request ID tracking.
// Form bodies are never logged; they carry bearer tokens.
func Logging(config LoggingConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	skipPaths := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			path := req.URL.Path

			if skip(path, skipPaths, config.SkipPrefixes) {
				return next(c)
			}

			requestID := req.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			res.Header().Set(RequestIDHeader, requestID)
			c.Set(RequestIDKey, requestID)

			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			status := res.Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", req.Method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Duration("latency", latency),
				slog.String("remote_ip", c.RealIP()),
				slog.String("user_agent", req.UserAgent()),
			}

			if query := req.URL.RawQuery; query != "" {
				attrs = append(attrs, slog.String("query", query))
			}
			if req.ContentLength > 0 {
				attrs = append(attrs, slog.Int64("content_length", req.ContentLength))
			}
			attrs = append(attrs, slog.Int64("response_size", res.Size))

			level := slog.LevelInfo
			switch {
			case status >= statusServerError:
				level = slog.LevelError
			case status >= statusClientError:
				level = slog.LevelWarn
			}
			if err != nil && level > slog.LevelInfo {
				attrs = append(attrs, slog.String("error", err.Error()))
			}

			config.Logger.LogAttrs(req.Context(), level, "HTTP request", attrs...)

			return err
		}
	}
}

func skip(path string, exact map[string]struct{}, prefixes []string) bool {
	if _, ok := exact[path]; ok {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// GetRequestID retrieves the request ID from the echo context.
func GetRequestID(c echo.Context) string {
	if id, ok := c.Get(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
