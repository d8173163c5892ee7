package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lllypuk/avatarconsole/internal/infrastructure/avatarapi"
)

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents an error in the API response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPError lets errors define their own HTTP representation.
type HTTPError interface {
	error
	HTTPStatus() int
	HTTPCode() string
	HTTPMessage() string
}

// RespondJSON sends a successful JSON response.
func RespondJSON(c echo.Context, code int, data any) error {
	return c.JSON(code, Response{
		Success: true,
		Data:    data,
	})
}

// RespondOK sends a 200 OK response with data.
func RespondOK(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusOK, data)
}

// RespondError sends an error JSON response based on the error type.
func RespondError(c echo.Context, err error) error {
	statusCode, apiError := mapError(err)
	return c.JSON(statusCode, Response{
		Success: false,
		Error:   apiError,
	})
}

// RespondErrorWithCode sends an error JSON response with a specific HTTP status code.
func RespondErrorWithCode(c echo.Context, code int, errorCode, message string) error {
	return c.JSON(code, Response{
		Success: false,
		Error: &Error{
			Code:    errorCode,
			Message: message,
		},
	})
}

// mapError maps console and backend errors to HTTP status codes and API errors.
func mapError(err error) (int, *Error) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.HTTPStatus(), &Error{
			Code:    httpErr.HTTPCode(),
			Message: httpErr.HTTPMessage(),
		}
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg := http.StatusText(echoErr.Code)
		if m, ok := echoErr.Message.(string); ok && m != "" {
			msg = m
		}
		return echoErr.Code, &Error{
			Code:    "HTTP_ERROR",
			Message: msg,
		}
	}

	switch {
	case errors.Is(err, avatarapi.ErrEmptyUsername):
		return http.StatusBadRequest, &Error{
			Code:    "INVALID_INPUT",
			Message: "Invalid input data",
		}

	case errors.Is(err, avatarapi.ErrUnexpectedStatus):
		return http.StatusBadGateway, &Error{
			Code:    "BACKEND_ERROR",
			Message: "The user service rejected the request",
		}

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, &Error{
			Code:    "BACKEND_TIMEOUT",
			Message: "The user service did not respond in time",
		}

	default:
		return http.StatusInternalServerError, &Error{
			Code:    "INTERNAL_ERROR",
			Message: "An internal error occurred",
		}
	}
}
