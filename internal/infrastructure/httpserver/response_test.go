package httpserver_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/avatarapi"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/httpserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type teapotError struct{}

func (teapotError) Error() string       { return "teapot" }
func (teapotError) HTTPStatus() int     { return http.StatusTeapot }
func (teapotError) HTTPCode() string    { return "TEAPOT" }
func (teapotError) HTTPMessage() string { return "short and stout" }

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		data         any
		expectedBody string
	}{
		{
			name:         "success with data",
			code:         http.StatusOK,
			data:         map[string]string{"key": "value"},
			expectedBody: `{"success":true,"data":{"key":"value"}}`,
		},
		{
			name:         "success with nil data",
			code:         http.StatusOK,
			data:         nil,
			expectedBody: `{"success":true}`,
		},
		{
			name:         "accepted with struct",
			code:         http.StatusAccepted,
			data:         struct{ Users int }{Users: 3},
			expectedBody: `{"success":true,"data":{"Users":3}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			err := httpserver.RespondJSON(c, tt.code, tt.data)

			require.NoError(t, err)
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
		})
	}
}

func TestRespondOK(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := httpserver.RespondOK(c, map[string]int{"count": 42})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"count":42}}`, rec.Body.String())
}

func TestRespondError(t *testing.T) {
	backendErr := &avatarapi.StatusError{
		Operation:  avatarapi.OpListUsers,
		StatusCode: http.StatusServiceUnavailable,
		Body:       "down",
	}

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedMsg    string
	}{
		{
			name:           "error with own HTTP representation",
			err:            teapotError{},
			expectedStatus: http.StatusTeapot,
			expectedCode:   "TEAPOT",
			expectedMsg:    "short and stout",
		},
		{
			name:           "echo HTTP error",
			err:            echo.NewHTTPError(http.StatusBadRequest, "image is required"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "HTTP_ERROR",
			expectedMsg:    "image is required",
		},
		{
			name:           "empty username",
			err:            avatarapi.ErrEmptyUsername,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_INPUT",
			expectedMsg:    "Invalid input data",
		},
		{
			name:           "backend status error",
			err:            backendErr,
			expectedStatus: http.StatusBadGateway,
			expectedCode:   "BACKEND_ERROR",
			expectedMsg:    "The user service rejected the request",
		},
		{
			name:           "wrapped backend status error",
			err:            fmt.Errorf("reload: %w", backendErr),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   "BACKEND_ERROR",
			expectedMsg:    "The user service rejected the request",
		},
		{
			name:           "deadline exceeded",
			err:            fmt.Errorf("list users: %w", context.DeadlineExceeded),
			expectedStatus: http.StatusGatewayTimeout,
			expectedCode:   "BACKEND_TIMEOUT",
			expectedMsg:    "The user service did not respond in time",
		},
		{
			name:           "unknown error",
			err:            errors.New("something unexpected"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "INTERNAL_ERROR",
			expectedMsg:    "An internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			err := httpserver.RespondError(c, tt.err)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, rec.Code)

			expectedBody := `{
				"success": false,
				"error": {
					"code": "` + tt.expectedCode + `",
					"message": "` + tt.expectedMsg + `"
				}
			}`
			assert.JSONEq(t, expectedBody, rec.Body.String())
		})
	}
}

func TestRespondErrorWithCode(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	err := httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Token is required")

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "VALIDATION_ERROR",
			"message": "Token is required"
		}
	}`, rec.Body.String())
}
