package avatarapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Operation names used in errors and metrics.
const (
	OpListUsers    = "list users"
	OpGetAvatar    = "get avatar"
	OpUploadAvatar = "upload avatar"
)

// maxErrorBody caps how much of a failed response is kept.
const maxErrorBody = 64 << 10

// Client errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrEmptyUsername    = errors.New("username is required")
)

// StatusError is returned when the service answers with a non-success status.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Is reports ErrUnexpectedStatus as the sentinel behind every StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

func newStatusError(op string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Operation:  op,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

// ResponseBody returns the body text of a StatusError anywhere in err's chain.
func ResponseBody(err error) (string, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Body, true
	}
	return "", false
}
