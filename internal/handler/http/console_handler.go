// Package httphandler serves the avatar console page and its JSON API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lllypuk/avatarconsole/internal/console"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/httpserver"
	"github.com/lllypuk/avatarconsole/internal/middleware"
)

// Form field names posted by the console page.
const (
	FieldToken = "token"
	FieldUser  = "user"
	FieldImage = "image"
)

const consoleTemplate = "console.html"

// ConsoleManager is the console state the handler drives.
// Declared on the consumer side.
type ConsoleManager interface {
	LoadUsers(ctx context.Context) error
	Upload(ctx context.Context) error
	SetToken(token string)
	SelectUser(username string)
	SetFile(file console.FileSelection)
	Snapshot() console.State
}

// AlertSource hands out pending operator alerts exactly once.
type AlertSource interface {
	Drain() []console.Alert
}

// UserRow is one user on the console page.
type UserRow struct {
	UserName string
	Avatar   string
	Selected bool
}

// ConsoleView is the page model of the console.
type ConsoleView struct {
	Users        []UserRow
	SelectedUser string
	HasToken     bool
	Token        *console.TokenInfo
	TokenExpired bool
	FileName     string
	Message      string
	Generation   uint64
	AvatarCount  int
}

// StateResponse is the JSON snapshot of the console. It never carries the token.
type StateResponse struct {
	Users        []UserResponse `json:"users"`
	Avatars      []string       `json:"avatars"`
	Generation   uint64         `json:"generation"`
	SelectedUser string         `json:"selected_user,omitempty"`
	HasToken     bool           `json:"has_token"`
	Token        *TokenResponse `json:"token,omitempty"`
	FileName     string         `json:"file_name,omitempty"`
	Message      string         `json:"message,omitempty"`
}

// UserResponse is a working set member in API responses.
type UserResponse struct {
	ID        json.RawMessage `json:"id"`
	UserName  string          `json:"userName"`
	HasAvatar bool            `json:"has_avatar"`
}

// TokenResponse describes the pasted token without revealing it.
type TokenResponse struct {
	Subject   string     `json:"subject,omitempty"`
	Username  string     `json:"username,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

// ReloadResponse is returned by the JSON reload endpoint.
type ReloadResponse struct {
	Generation uint64 `json:"generation"`
	Users      int    `json:"users"`
}

// ConsoleHandler serves the console page and its form posts.
type ConsoleHandler struct {
	manager  ConsoleManager
	alerts   AlertSource
	renderer *TemplateRenderer
	logger   *slog.Logger
	now      func() time.Time
}

// NewConsoleHandler creates a new ConsoleHandler.
func NewConsoleHandler(
	manager ConsoleManager,
	alerts AlertSource,
	renderer *TemplateRenderer,
	logger *slog.Logger,
) *ConsoleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleHandler{
		manager:  manager,
		alerts:   alerts,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes registers the console page and API routes with the router.
func (h *ConsoleHandler) RegisterRoutes(r *httpserver.Router) {
	r.Pages().GET("/", h.Index)
	r.Pages().POST("/token", h.SetToken)
	r.Pages().POST("/select", h.SelectUser)
	r.Pages().POST("/upload", h.Upload)
	r.Pages().POST("/reload", h.Reload)

	r.API().GET("/state", h.State)
	r.API().POST("/reload", h.ReloadAPI)
}

// Index handles GET /.
// Pending alerts are drained here, so each is rendered once.
func (h *ConsoleHandler) Index(c echo.Context) error {
	state := h.manager.Snapshot()

	view := ConsoleView{
		SelectedUser: state.SelectedUser,
		HasToken:     state.Token != "",
		FileName:     state.File.Name,
		Message:      state.Message,
		Generation:   state.Generation,
		AvatarCount:  len(state.Avatars),
		Users:        make([]UserRow, 0, len(state.Users)),
	}
	for _, u := range state.Users {
		avatar, _ := state.Avatar(u.UserName)
		view.Users = append(view.Users, UserRow{
			UserName: u.UserName,
			Avatar:   avatar,
			Selected: u.UserName == state.SelectedUser,
		})
	}
	if info, ok := console.DescribeToken(state.Token); ok {
		view.Token = &info
		view.TokenExpired = info.Expired(h.now())
	}

	return h.render(c, consoleTemplate, "User Avatar Manager", view)
}

// SetToken handles POST /token.
func (h *ConsoleHandler) SetToken(c echo.Context) error {
	h.manager.SetToken(c.FormValue(FieldToken))
	return h.redirectHome(c)
}

// SelectUser handles POST /select.
func (h *ConsoleHandler) SelectUser(c echo.Context) error {
	h.manager.SelectUser(c.FormValue(FieldUser))
	return h.redirectHome(c)
}

// Upload handles POST /upload.
// Fields present in the form are applied to the state first; absent ones keep
// their current values. The outcome reaches the operator as alerts.
func (h *ConsoleHandler) Upload(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload form")
	}

	if values, ok := params[FieldToken]; ok && len(values) > 0 {
		h.manager.SetToken(values[0])
	}
	if values, ok := params[FieldUser]; ok && len(values) > 0 {
		h.manager.SelectUser(values[0])
	}

	file, err := readFormFile(c, FieldImage)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// keep the current selection
	case err != nil:
		h.logger.WarnContext(c.Request().Context(), "failed to read uploaded file",
			slog.String("request_id", middleware.GetRequestID(c)),
			slog.String("error", err.Error()),
		)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid image")
	default:
		h.manager.SetFile(file)
	}

	if uploadErr := h.manager.Upload(c.Request().Context()); uploadErr != nil {
		h.logger.DebugContext(c.Request().Context(), "upload did not complete",
			slog.String("request_id", middleware.GetRequestID(c)),
			slog.String("error", uploadErr.Error()),
		)
	}

	return h.redirectHome(c)
}

// Reload handles POST /reload.
// A failed load is logged by the manager and keeps the current working set.
func (h *ConsoleHandler) Reload(c echo.Context) error {
	_ = h.manager.LoadUsers(c.Request().Context())
	return h.redirectHome(c)
}

// State handles GET /api/state.
func (h *ConsoleHandler) State(c echo.Context) error {
	state := h.manager.Snapshot()

	resp := StateResponse{
		Users:        make([]UserResponse, 0, len(state.Users)),
		Avatars:      make([]string, 0, len(state.Avatars)),
		Generation:   state.Generation,
		SelectedUser: state.SelectedUser,
		HasToken:     state.Token != "",
		FileName:     state.File.Name,
		Message:      state.Message,
	}
	for _, u := range state.Users {
		_, hasAvatar := state.Avatar(u.UserName)
		resp.Users = append(resp.Users, UserResponse{
			ID:        u.ID,
			UserName:  u.UserName,
			HasAvatar: hasAvatar,
		})
	}
	for name := range state.Avatars {
		resp.Avatars = append(resp.Avatars, name)
	}
	slices.Sort(resp.Avatars)

	if info, ok := console.DescribeToken(state.Token); ok {
		tr := &TokenResponse{
			Subject:  info.Subject,
			Username: info.Username,
			Expired:  info.Expired(h.now()),
		}
		if !info.ExpiresAt.IsZero() {
			exp := info.ExpiresAt.UTC()
			tr.ExpiresAt = &exp
		}
		resp.Token = tr
	}

	return httpserver.RespondOK(c, resp)
}

// ReloadAPI handles POST /api/reload.
func (h *ConsoleHandler) ReloadAPI(c echo.Context) error {
	if err := h.manager.LoadUsers(c.Request().Context()); err != nil {
		return httpserver.RespondError(c, err)
	}

	state := h.manager.Snapshot()
	return httpserver.RespondOK(c, ReloadResponse{
		Generation: state.Generation,
		Users:      len(state.Users),
	})
}

func (h *ConsoleHandler) render(c echo.Context, templateName, title string, data any) error {
	pageData := PageData{
		Title:  title,
		Alerts: h.alerts.Drain(),
		Data:   data,
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().Header().Set("Cache-Control", "no-store")
	return h.renderer.Render(c.Response(), templateName, pageData, c)
}

func (h *ConsoleHandler) redirectHome(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/")
}

func readFormFile(c echo.Context, field string) (console.FileSelection, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return console.FileSelection{}, err
	}

	src, err := header.Open()
	if err != nil {
		return console.FileSelection{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return console.FileSelection{}, err
	}
	if len(data) == 0 {
		return console.FileSelection{}, http.ErrMissingFile
	}

	return console.FileSelection{
		Name:        header.Filename,
		ContentType: header.Header.Get(echo.HeaderContentType),
		Data:        data,
	}, nil
}
