//go:build e2e

package main

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/avatarconsole/internal/config"
	"github.com/lllypuk/avatarconsole/internal/console"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/avatarapi/avatarapitest"
)

const e2eTimeout = 30 * time.Second

// isHeadless returns whether the browser runs headless.
// Set HEADLESS=false to watch the run.
func isHeadless() bool {
	if val := os.Getenv("HEADLESS"); val == "false" || val == "0" {
		return false
	}
	return true
}

// browserSession is a running console plus a page pointed at it.
type browserSession struct {
	url     string
	backend *avatarapitest.Backend
	page    playwright.Page

	mu     sync.Mutex
	alerts []string
}

func (s *browserSession) Alerts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.alerts...)
}

func startBrowserSession(t *testing.T) *browserSession {
	t.Helper()

	backend := avatarapitest.NewBackend(t)
	backend.SetUsers("alice", "bob")
	backend.SetAvatar("alice", "image/png", "iVBORw0KGgo=")

	cfg := config.DefaultConfig()
	cfg.Backend.BaseURL = backend.URL()
	logger := slog.New(slog.DiscardHandler)

	c, err := NewContainer(cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	router := SetupRoutes(c, newServer(cfg, logger))
	srv := httptest.NewServer(router.Echo())
	t.Cleanup(srv.Close)

	require.NoError(t, c.Manager.LoadUsers(context.Background()))
	c.Manager.Wait()

	pw, err := playwright.Run()
	require.NoError(t, err, "Failed to start Playwright")
	t.Cleanup(func() { _ = pw.Stop() })

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(isHeadless()),
	})
	require.NoError(t, err, "Failed to launch browser")
	t.Cleanup(func() { _ = browser.Close() })

	page, err := browser.NewPage()
	require.NoError(t, err)
	page.SetDefaultTimeout(float64(e2eTimeout.Milliseconds()))

	s := &browserSession{url: srv.URL, backend: backend, page: page}
	page.OnDialog(func(dialog playwright.Dialog) {
		s.mu.Lock()
		s.alerts = append(s.alerts, dialog.Message())
		s.mu.Unlock()
		_ = dialog.Accept()
	})

	_, err = page.Goto(s.url + "/")
	require.NoError(t, err)

	return s
}

func TestE2E_ListsUsersWithAvatars(t *testing.T) {
	s := startBrowserSession(t)

	rows := s.page.Locator("[data-testid=user-list] li")
	count, err := rows.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	imgs, err := s.page.Locator(`li[data-username="alice"] img.avatar`).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, imgs)

	placeholder, err := s.page.Locator(`li[data-username="bob"] .no-avatar`).TextContent()
	require.NoError(t, err)
	assert.Equal(t, "(No Avatar)", placeholder)
}

func TestE2E_UploadWithoutTokenAlerts(t *testing.T) {
	s := startBrowserSession(t)

	require.NoError(t, s.page.Locator("#upload").Click())

	assert.Eventually(t, func() bool {
		alerts := s.Alerts()
		return len(alerts) == 1 && alerts[0] == console.MsgMissingFields
	}, e2eTimeout, 50*time.Millisecond)
	assert.Empty(t, s.backend.Uploads())
}

func TestE2E_UploadAvatar(t *testing.T) {
	s := startBrowserSession(t)

	require.NoError(t, s.page.Locator("#token").Fill("operator-token"))
	require.NoError(t, s.page.Locator("#token-form button").Click())

	status := s.page.Locator("[data-testid=token-status]")
	require.NoError(t, status.WaitFor(playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateVisible,
	}))
	text, err := status.TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "Token set")

	_, err = s.page.Locator("#user").SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("bob"),
	})
	require.NoError(t, err)

	require.NoError(t, s.page.Locator("#image").SetInputFiles([]playwright.InputFile{{
		Name:     "bob.png",
		MimeType: "image/png",
		Buffer:   []byte("\x89PNG\r\n\x1a\nfake"),
	}}))
	require.NoError(t, s.page.Locator("#upload").Click())

	message := s.page.Locator("[data-testid=message]")
	require.NoError(t, message.WaitFor(playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateVisible,
	}))

	uploads := s.backend.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "Bearer operator-token", uploads[0].Authorization)
	assert.Equal(t, "bob.png", uploads[0].FileName)

	assert.Eventually(t, func() bool {
		for _, alert := range s.Alerts() {
			if alert == console.MsgUploadSuccess {
				return true
			}
		}
		return false
	}, e2eTimeout, 50*time.Millisecond)
}
