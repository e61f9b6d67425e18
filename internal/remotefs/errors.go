package remotefs

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for API failure classes. Wrap these with APIError so
// callers can use errors.Is without parsing status codes.
var (
	// ErrNoDeviceIdentity means a client was constructed without a device
	// identity. Requests must fail fast locally rather than be sent.
	ErrNoDeviceIdentity = errors.New("remotefs: no device identity")

	// ErrUnauthorized maps 401: the session token is missing or stale and
	// the user must re-authenticate.
	ErrUnauthorized = errors.New("remotefs: unauthorized")

	// ErrNotFound maps 404.
	ErrNotFound = errors.New("remotefs: not found")

	// ErrRequest maps other 4xx client errors.
	ErrRequest = errors.New("remotefs: bad request")

	// ErrServer maps 5xx server errors.
	ErrServer = errors.New("remotefs: server error")
)

// APIError carries the HTTP status and response body of a failed call,
// wrapping the classified sentinel.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("remotefs: HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the classified sentinel for errors.Is.
func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to its sentinel error.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return ErrServer
	default:
		return ErrRequest
	}
}

// isRetryable reports whether a status code is worth retrying:
// throttling and transient server errors.
func isRetryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
