package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// maxErrorBody caps how much of a response body is echoed in error messages.
const maxErrorBody = 512

// Error reports a network failure or an unsuccessful HTTP status.
// StatusCode is zero when no response was received.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Cause      error
}

// Error returns a string representation of the transport error.
func (e *Error) Error() string {
	if e == nil {
		return "transport error"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Cause)
	}
	body := e.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), string(body))
}

// Unwrap returns the underlying network error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Timeout reports whether the failure was a deadline or network timeout.
func (e *Error) Timeout() bool {
	if e == nil || e.Cause == nil {
		return false
	}
	if errors.Is(e.Cause, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Cause, &netErr) && netErr.Timeout()
}

// IsTransportError checks if an error is a transport error.
func IsTransportError(err error) bool {
	var transportErr *Error
	return errors.As(err, &transportErr)
}

// StatusCode extracts the HTTP status from a transport error, or 0.
func StatusCode(err error) int {
	var transportErr *Error
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}
	return 0
}
