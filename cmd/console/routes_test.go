package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/avatarconsole/internal/config"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/avatarapi/avatarapitest"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/httpserver"
)

func setupTestRoutes(t *testing.T, backend *avatarapitest.Backend, mutate func(*config.Config)) (*Container, *echo.Echo) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Backend.BaseURL = backend.URL()
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.DiscardHandler)
	c, err := NewContainer(cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	router := SetupRoutes(c, newServer(cfg, logger))
	require.NotNil(t, router)

	return c, router.Echo()
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusConstants(t *testing.T) {
	assert.Equal(t, "healthy", httpserver.StatusHealthy)
	assert.Equal(t, "unhealthy", httpserver.StatusUnhealthy)
	assert.Equal(t, "ready", httpserver.StatusReady)
	assert.Equal(t, "not_ready", httpserver.StatusNotReady)
	assert.Equal(t, "degraded", httpserver.StatusDegraded)
}

func TestSetupRoutes_HealthEndpoints(t *testing.T) {
	backend := avatarapitest.NewBackend(t)
	backend.SetUsers("alice")
	c, e := setupTestRoutes(t, backend, nil)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, c.Manager.LoadUsers(context.Background()))
	c.Manager.Wait()

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httpserver.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, httpserver.StatusReady, resp.Status)
	require.Len(t, resp.Components, 1)
	assert.Equal(t, componentUserService, resp.Components[0].Name)
}

func TestSetupRoutes_ConsolePage(t *testing.T) {
	backend := avatarapitest.NewBackend(t)
	backend.SetUsers("alice", "bob")
	backend.SetAvatar("alice", "image/png", "QQ==")
	c, e := setupTestRoutes(t, backend, nil)

	require.NoError(t, c.Manager.LoadUsers(context.Background()))
	c.Manager.Wait()

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `data-username="alice"`)
	assert.Contains(t, body, `src="data:image/png;base64,QQ=="`)
	assert.Contains(t, body, "(No Avatar)")

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/static/console.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetupRoutes_ReloadThroughPage(t *testing.T) {
	backend := avatarapitest.NewBackend(t)
	backend.SetUsers("alice")
	c, e := setupTestRoutes(t, backend, nil)

	req := httptest.NewRequest(http.MethodPost, "/reload", strings.NewReader(url.Values{}.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := serve(e, req)
	c.Manager.Wait()

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, backend.ListCalls())
	assert.Len(t, c.Manager.Snapshot().Users, 1)
}

func TestSetupRoutes_Metrics(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		backend := avatarapitest.NewBackend(t)
		backend.SetUsers("alice")
		c, e := setupTestRoutes(t, backend, nil)

		require.NoError(t, c.Manager.LoadUsers(context.Background()))
		c.Manager.Wait()

		rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `avatarconsole_user_list_loads_total{status="success"} 1`)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})

	t.Run("custom path", func(t *testing.T) {
		_, e := setupTestRoutes(t, avatarapitest.NewBackend(t), func(cfg *config.Config) {
			cfg.Metrics.Path = "/internal/metrics"
		})

		rec := serve(e, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		_, e := setupTestRoutes(t, avatarapitest.NewBackend(t), func(cfg *config.Config) {
			cfg.Metrics.Enabled = false
		})

		rec := serve(e, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSetupRoutes_UploadLimit(t *testing.T) {
	_, e := setupTestRoutes(t, avatarapitest.NewBackend(t), func(cfg *config.Config) {
		cfg.Server.UploadLimit = "1K"
	})

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 4096)))
	req.Header.Set(echo.HeaderContentType, "multipart/form-data; boundary=x")
	rec := serve(e, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
