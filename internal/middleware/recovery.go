package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"

	"github.com/labstack/echo/v4"
)

// DefaultStackSize is the default stack trace size (4KB).
const DefaultStackSize = 4 << 10

// internalErrorMessage is shown to the operator instead of panic details.
const internalErrorMessage = "An internal error occurred"

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// Logger is the structured logger to use for panic logging.
	Logger *slog.Logger

	// StackSize is the maximum size of the stack trace to capture.
	StackSize int

	// DisablePrintStack leaves the stack trace out of the log entry.
	DisablePrintStack bool

	// APIPrefix marks requests that get a JSON error instead of plain text.
	APIPrefix string
}

// DefaultRecoveryConfig returns a RecoveryConfig with sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:    slog.Default(),
		StackSize: DefaultStackSize,
		APIPrefix: "/api/",
	}
}

// Recovery returns a middleware that recovers from panics and logs the error.
func Recovery(logger *slog.Logger) echo.MiddlewareFunc {
	config := DefaultRecoveryConfig()
	config.Logger = logger
	return RecoveryWithConfig(config)
}

// RecoveryWithConfig returns a recovery middleware with custom configuration.
func RecoveryWithConfig(config RecoveryConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.StackSize == 0 {
		config.StackSize = DefaultStackSize
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}

				req := c.Request()
				logAttrs := []any{
					slog.String("error", err.Error()),
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.String("remote_ip", c.RealIP()),
				}
				if requestID := GetRequestID(c); requestID != "" {
					logAttrs = append(logAttrs, slog.String("request_id", requestID))
				}
				if !config.DisablePrintStack {
					stack := make([]byte, config.StackSize)
					length := runtime.Stack(stack, false)
					logAttrs = append(logAttrs, slog.String("stack", string(stack[:length])))
				}

				config.Logger.Error("panic recovered", logAttrs...)

				if c.Response().Committed {
					return
				}
				if config.APIPrefix != "" && strings.HasPrefix(req.URL.Path, config.APIPrefix) {
					_ = c.JSON(http.StatusInternalServerError, map[string]string{
						"error": internalErrorMessage,
					})
					return
				}
				_ = c.String(http.StatusInternalServerError, internalErrorMessage)
			}()

			return next(c)
		}
	}
}
