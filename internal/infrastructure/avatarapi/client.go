// Package avatarapi is an HTTP client for the user service's avatar endpoints.
package avatarapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the user service address used when none is configured.
const DefaultBaseURL = "http://localhost:8080"

// Endpoint paths.
const (
	usersPath          = "/api/users"
	profilePicturePath = "/api/users/profile-picture/"
	uploadAvatarPath   = "/api/profile/avatar"

	// ImageFormField is the multipart field carrying the uploaded avatar.
	ImageFormField = "image"
)

// Config contains configuration for Client.
type Config struct {
	// BaseURL is the base URL of the user service.
	BaseURL string

	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration

	// HTTPClient is an optional custom HTTP client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client performs the list-users, get-avatar and upload-avatar calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// User is a record from the user list endpoint.
// Extra fields returned by the service are ignored.
type User struct {
	ID       json.RawMessage `json:"id"`
	UserName string          `json:"userName"`
}

// Avatar is the payload of the profile picture endpoint.
type Avatar struct {
	ContentType string `json:"contentType"`
	ImageData   string `json:"imageData"`
}

// Image is a file selected for upload.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewClient creates a new user service client.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListUsers returns every user known to the service, unfiltered.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+usersPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list users request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, newStatusError(OpListUsers, resp)
	}

	var users []User
	decodeErr := json.NewDecoder(resp.Body).Decode(&users)
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode users response: %w", decodeErr)
	}

	return users, nil
}

// GetAvatar returns the stored avatar of a user.
func (c *Client) GetAvatar(ctx context.Context, username string) (*Avatar, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}

	reqURL := c.baseURL + profilePicturePath + url.PathEscape(username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get avatar request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, newStatusError(OpGetAvatar, resp)
	}

	var avatar Avatar
	decodeErr := json.NewDecoder(resp.Body).Decode(&avatar)
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode avatar response: %w", decodeErr)
	}

	return &avatar, nil
}

// UploadAvatar posts an image as the avatar of the token's owner and returns
// the service's plain-text reply.
func (c *Client) UploadAvatar(ctx context.Context, token string, image Image) (string, error) {
	body, contentType, err := encodeImage(image)
	if err != nil {
		return "", fmt.Errorf("failed to encode upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadAvatarPath, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload avatar request failed: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", newStatusError(OpUploadAvatar, resp)
	}

	text, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", fmt.Errorf("failed to read upload response: %w", readErr)
	}

	return string(text), nil
}

// encodeImage builds the multipart body with a single image part.
func encodeImage(image Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := image.Name
	if name == "" {
		name = "avatar"
	}
	contentType := image.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(image.Data)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, ImageFormField, name))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err = part.Write(image.Data); err != nil {
		return nil, "", err
	}
	if err = writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
