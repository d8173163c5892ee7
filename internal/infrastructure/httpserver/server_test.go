package httpserver_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/httpserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	config := httpserver.DefaultServerConfig()

	assert.Equal(t, httpserver.DefaultHost, config.Host)
	assert.Equal(t, httpserver.DefaultPort, config.Port)
	assert.Equal(t, httpserver.DefaultReadTimeout, config.ReadTimeout)
	assert.Equal(t, httpserver.DefaultWriteTimeout, config.WriteTimeout)
	assert.Equal(t, httpserver.DefaultShutdownTimeout, config.ShutdownTimeout)
	assert.Equal(t, httpserver.DefaultBodyLimit, config.BodyLimit)
}

func TestNewServer(t *testing.T) {
	tests := []struct {
		name   string
		config httpserver.ServerConfig
		logger *slog.Logger
	}{
		{
			name:   "with default config and nil logger",
			config: httpserver.DefaultServerConfig(),
			logger: nil,
		},
		{
			name: "with custom config and logger",
			config: httpserver.ServerConfig{
				Host:            "127.0.0.1",
				Port:            3001,
				ReadTimeout:     15 * time.Second,
				WriteTimeout:    15 * time.Second,
				ShutdownTimeout: 5 * time.Second,
				BodyLimit:       "1M",
			},
			logger: slog.Default(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httpserver.NewServer(tt.config, tt.logger)

			require.NotNil(t, server)
			require.NotNil(t, server.Echo())
			assert.True(t, server.Echo().HideBanner)
			assert.True(t, server.Echo().HidePort)
			assert.Equal(t, httpserver.DefaultMaxHeaderBytes, server.Echo().Server.MaxHeaderBytes)
		})
	}
}

func TestServerAddress(t *testing.T) {
	tests := []struct {
		name     string
		config   httpserver.ServerConfig
		expected string
	}{
		{
			name:     "default config",
			config:   httpserver.DefaultServerConfig(),
			expected: "0.0.0.0:3000",
		},
		{
			name: "custom config",
			config: httpserver.ServerConfig{
				Host: "localhost",
				Port: 3001,
			},
			expected: "localhost:3001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httpserver.NewServer(tt.config, nil)
			assert.Equal(t, tt.expected, server.Address())
		})
	}
}

func TestServerBodyLimit(t *testing.T) {
	config := httpserver.DefaultServerConfig()
	config.BodyLimit = "1K"
	server := httpserver.NewServer(config, nil)
	server.Echo().POST("/upload", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	t.Run("small body passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("tiny"))
		server.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 4096)))
		server.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestServerShutdown(t *testing.T) {
	config := httpserver.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
	server := httpserver.NewServer(config, nil)

	// Shutdown completes even if the server was never started.
	err := server.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestServerTimeoutConfiguration(t *testing.T) {
	config := httpserver.ServerConfig{
		Host:         "127.0.0.1",
		Port:         3000,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
	}
	server := httpserver.NewServer(config, nil)

	assert.Equal(t, 15*time.Second, server.Echo().Server.ReadTimeout)
	assert.Equal(t, 20*time.Second, server.Echo().Server.WriteTimeout)
}

func TestServerMethodNotAllowed(t *testing.T) {
	server := httpserver.NewServer(httpserver.DefaultServerConfig(), nil)
	server.Echo().GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
