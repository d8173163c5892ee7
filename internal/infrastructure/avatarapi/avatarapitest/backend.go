// Package avatarapitest provides an in-memory user service for tests.
package avatarapitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lllypuk/avatarconsole/internal/infrastructure/avatarapi"
)

const maxUploadMemory = 10 << 20

// Upload is one avatar upload received by the Backend.
type Upload struct {
	Authorization string
	FileName      string
	ContentType   string
	Data          []byte
}

// Backend is a scripted user service served over httptest.
type Backend struct {
	Server *httptest.Server

	mu sync.Mutex

	users      []avatarapi.User
	listStatus int
	avatars    map[string]avatarapi.Avatar

	uploadStatus int
	uploadBody   string
	uploads      []Upload

	listCalls   int
	avatarCalls int

	avatarGate chan struct{}
}

// NewBackend starts a Backend that answers 200 to every call until told
// otherwise. It is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		listStatus:   http.StatusOK,
		avatars:      make(map[string]avatarapi.Avatar),
		uploadStatus: http.StatusOK,
		uploadBody:   "Avatar updated",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users", b.handleListUsers)
	mux.HandleFunc("GET /api/users/profile-picture/{username}", b.handleGetAvatar)
	mux.HandleFunc("POST /api/profile/avatar", b.handleUpload)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)

	return b
}

// URL returns the base URL of the backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// SetUsers replaces the user list. Users are encoded with numeric ids.
func (b *Backend) SetUsers(names ...string) {
	users := make([]avatarapi.User, len(names))
	for i, name := range names {
		id, _ := json.Marshal(i + 1)
		users[i] = avatarapi.User{ID: id, UserName: name}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = users
}

// SetListStatus makes the user list answer with status and no body.
func (b *Backend) SetListStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listStatus = status
}

// SetAvatar stores an avatar for username.
func (b *Backend) SetAvatar(username, contentType, imageData string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.avatars[username] = avatarapi.Avatar{ContentType: contentType, ImageData: imageData}
}

// SetUploadResponse sets the status and text returned by uploads.
func (b *Backend) SetUploadResponse(status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploadStatus = status
	b.uploadBody = body
}

// HoldAvatars makes avatar requests wait until the returned func is called.
func (b *Backend) HoldAvatars() (release func()) {
	gate := make(chan struct{})

	b.mu.Lock()
	b.avatarGate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Uploads returns the uploads received so far.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

// ListCalls returns how often the user list was requested.
func (b *Backend) ListCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

// AvatarCalls returns how often an avatar was requested.
func (b *Backend) AvatarCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.avatarCalls
}

func (b *Backend) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.listCalls++
	status := b.listStatus
	users := append([]avatarapi.User(nil), b.users...)
	b.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if users == nil {
		users = []avatarapi.User{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(users)
}

func (b *Backend) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	b.mu.Lock()
	b.avatarCalls++
	gate := b.avatarGate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	b.mu.Lock()
	avatar, ok := b.avatars[username]
	b.mu.Unlock()

	if !ok {
		http.Error(w, "no profile picture", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(avatar)
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	upload := Upload{Authorization: r.Header.Get("Authorization")}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile(avatarapi.ImageFormField)
	if err != nil {
		http.Error(w, "image is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "unreadable image", http.StatusBadRequest)
		return
	}
	upload.FileName = header.Filename
	upload.ContentType = header.Header.Get("Content-Type")
	upload.Data = data

	b.mu.Lock()
	b.uploads = append(b.uploads, upload)
	status, body := b.uploadStatus, b.uploadBody
	b.mu.Unlock()

	if !strings.HasPrefix(upload.Authorization, "Bearer ") {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
