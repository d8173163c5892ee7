package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/avatarapi"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/metrics"
)

// Operator-facing alert texts.
const (
	MsgMissingFields  = "Please fill all fields (user, image, token)."
	MsgUploadFailed   = "Upload failed: "
	MsgUploadSuccess  = "Avatar uploaded successfully!"
	MsgNetworkFailure = "Network error occurred. Check the logs for details."
)

// UserService is the remote user service.
type UserService interface {
	ListUsers(ctx context.Context) ([]avatarapi.User, error)
	GetAvatar(ctx context.Context, username string) (*avatarapi.Avatar, error)
	UploadAvatar(ctx context.Context, token string, image avatarapi.Image) (string, error)
}

// Manager owns the console state and runs loads and uploads against it.
type Manager struct {
	service UserService
	logger  *slog.Logger
	alerter Alerter
	metrics *metrics.ConsoleMetrics
	policy  StalePolicy
	guard   bool

	mu          sync.Mutex
	state       State
	cycles      uint64
	loaded      bool
	lastLoadErr error

	inflight sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithAlerter sets the sink for operator alerts.
func WithAlerter(alerter Alerter) Option {
	return func(m *Manager) {
		m.alerter = alerter
	}
}

// WithMetrics records load and upload outcomes.
func WithMetrics(consoleMetrics *metrics.ConsoleMetrics) Option {
	return func(m *Manager) {
		m.metrics = consoleMetrics
	}
}

// WithStalePolicy sets what happens to avatars of users that disappear.
func WithStalePolicy(policy StalePolicy) Option {
	return func(m *Manager) {
		m.policy = policy
	}
}

// WithGenerationGuard discards avatar results from superseded load cycles.
func WithGenerationGuard(enabled bool) Option {
	return func(m *Manager) {
		m.guard = enabled
	}
}

// NewManager creates a manager with an empty state.
// The generation guard is on unless disabled with WithGenerationGuard(false).
func NewManager(service UserService, opts ...Option) *Manager {
	m := &Manager{
		service: service,
		logger:  slog.Default(),
		alerter: NopAlerter{},
		policy:  RetainRemoved,
		guard:   true,
		state:   NewState(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// LoadUsers fetches the user list, replaces the working set and starts one
// avatar fetch per retained user without waiting for them. On failure the
// previous working set is kept and the error is only logged and returned.
func (m *Manager) LoadUsers(ctx context.Context) error {
	cycleID := uuid.New().String()

	// The cycle number is taken before the request so that overlapping
	// reloads apply in the order they were started.
	m.mu.Lock()
	m.cycles++
	generation := m.cycles
	m.mu.Unlock()

	start := time.Now()

	users, err := m.service.ListUsers(ctx)
	m.metrics.ObserveRequest(avatarapi.OpListUsers, time.Since(start))
	if err != nil {
		m.logger.ErrorContext(ctx, "error fetching users",
			slog.String("cycle_id", cycleID),
			slog.String("error", err.Error()),
		)
		m.metrics.ObserveUserListLoad(metrics.StatusFailed)
		m.mu.Lock()
		m.lastLoadErr = err
		m.mu.Unlock()
		return err
	}

	fetched := make([]User, len(users))
	for i, u := range users {
		fetched[i] = User{ID: u.ID, UserName: u.UserName}
	}

	m.mu.Lock()
	next, applied := m.state.ApplyUsers(generation, fetched, m.policy)
	if !applied {
		current := m.state.Generation
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "discarding superseded user list",
			slog.String("cycle_id", cycleID),
			slog.Uint64("generation", generation),
			slog.Uint64("current_generation", current),
		)
		m.metrics.ObserveUserListLoad(metrics.StatusStale)
		return nil
	}
	m.state = next
	retained := m.state.Users
	m.loaded = true
	m.lastLoadErr = nil
	m.metrics.SetStateSizes(len(m.state.Users), len(m.state.Avatars))
	m.mu.Unlock()

	m.metrics.ObserveUserListLoad(metrics.StatusSuccess)
	m.logger.InfoContext(ctx, "users loaded",
		slog.String("cycle_id", cycleID),
		slog.Uint64("generation", generation),
		slog.Int("received", len(users)),
		slog.Int("retained", len(retained)),
	)

	// Avatar fetches outlive the caller; there is no cancellation.
	detached := context.WithoutCancel(ctx)
	for _, u := range retained {
		m.inflight.Add(1)
		go func(username string) {
			defer m.inflight.Done()
			_ = m.LoadAvatar(detached, generation, username)
		}(u.UserName)
	}

	return nil
}

// LoadAvatar fetches one avatar and merges it under username.
// A failed fetch leaves the avatar map untouched.
func (m *Manager) LoadAvatar(ctx context.Context, generation uint64, username string) error {
	start := time.Now()
	avatar, err := m.service.GetAvatar(ctx, username)
	m.metrics.ObserveRequest(avatarapi.OpGetAvatar, time.Since(start))
	if err != nil {
		m.logger.ErrorContext(ctx, "error fetching avatar",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		m.metrics.ObserveAvatarFetch(metrics.StatusFailed)
		return err
	}

	ref := DataURI(avatar.ContentType, avatar.ImageData)

	m.mu.Lock()
	next, merged := m.state.MergeAvatar(generation, username, ref, m.guard)
	if merged {
		m.state = next
	}
	current := m.state.Generation
	m.metrics.SetStateSizes(len(m.state.Users), len(m.state.Avatars))
	m.mu.Unlock()

	if !merged {
		m.logger.DebugContext(ctx, "discarding stale avatar",
			slog.String("username", username),
			slog.Uint64("generation", generation),
			slog.Uint64("current_generation", current),
		)
		m.metrics.ObserveAvatarFetch(metrics.StatusStale)
		return nil
	}

	m.metrics.ObserveAvatarFetch(metrics.StatusSuccess)
	return nil
}

// Upload sends the selected file for the selected user with the current
// token. Missing fields are rejected before any network call. On success the
// user list is reloaded exactly once.
func (m *Manager) Upload(ctx context.Context) error {
	m.mu.Lock()
	req, err := m.state.UploadRequest()
	m.mu.Unlock()

	if err != nil {
		m.alerter.Alert(ctx, Alert{Level: AlertWarning, Text: MsgMissingFields})
		m.metrics.ObserveUpload(metrics.StatusRejected)
		return err
	}

	m.logger.InfoContext(ctx, "starting upload", slog.String("username", req.TargetUsername))

	start := time.Now()
	text, err := m.service.UploadAvatar(ctx, req.Token, avatarapi.Image{
		Name:        req.File.Name,
		ContentType: req.File.ContentType,
		Data:        req.File.Data,
	})
	m.metrics.ObserveRequest(avatarapi.OpUploadAvatar, time.Since(start))

	if err != nil {
		if body, ok := avatarapi.ResponseBody(err); ok {
			m.logger.ErrorContext(ctx, "server error", slog.String("body", body))
			m.alerter.Alert(ctx, Alert{Level: AlertError, Text: MsgUploadFailed + body})
			m.metrics.ObserveUpload(metrics.StatusFailed)
			return err
		}

		m.logger.ErrorContext(ctx, "network error", slog.String("error", err.Error()))
		m.alerter.Alert(ctx, Alert{Level: AlertError, Text: MsgNetworkFailure})
		m.metrics.ObserveUpload(metrics.StatusNetwork)
		return err
	}

	m.logger.InfoContext(ctx, "upload success",
		slog.String("username", req.TargetUsername),
		slog.String("message", text),
	)
	m.metrics.ObserveUpload(metrics.StatusSuccess)

	m.mu.Lock()
	m.state = m.state.SetMessage(text)
	m.mu.Unlock()

	m.alerter.Alert(ctx, Alert{Level: AlertInfo, Text: MsgUploadSuccess})

	// Reload failures are logged by LoadUsers and do not fail the upload.
	_ = m.LoadUsers(ctx)

	return nil
}

// SetToken replaces the bearer token.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.state.SetToken(token)
}

// SelectUser sets the upload target.
func (m *Manager) SelectUser(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.state.SelectUser(username)
}

// SetFile replaces the file selected for upload.
func (m *Manager) SetFile(file FileSelection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.state.SetFile(file)
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// LoadStatus reports whether any user list load has succeeded and the error
// of the most recent load, nil if it succeeded.
func (m *Manager) LoadStatus() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded, m.lastLoadErr
}

// Wait blocks until every avatar fetch started so far has finished.
func (m *Manager) Wait() {
	m.inflight.Wait()
}
