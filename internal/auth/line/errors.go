// Package line implements the unofficial notify-bot web session: QR and PIN
// login against access.line.me, cookie persistence, group listing and
// personal access token issuance.
package line

import (
	"errors"
	"fmt"
)

const maxBodyEcho = 512

var (
	// ErrWaitTimeout is wrapped by the wait-stage errors when the user did not
	// scan the QR code or confirm the PIN before the wait deadline.
	ErrWaitTimeout = errors.New("line: wait deadline exceeded")

	// ErrEmailLoginUnsupported is returned when email credentials are configured.
	ErrEmailLoginUnsupported = errors.New("line: email login is not supported, use QR login")

	// ErrGroupNotFound is returned by GroupByMid when no group matches.
	ErrGroupNotFound = errors.New("line: group not found")

	// ErrInvalidTarget rejects a token target that is neither the user nor a specific group.
	ErrInvalidTarget = errors.New("line: invalid token target")

	// ErrInvalidState is returned when a login step is called out of order.
	ErrInvalidState = errors.New("line: login step called in wrong state")

	errNotJSONObject = errors.New("body is not a JSON object")
)

type missingFieldError struct {
	field string
}

func (e *missingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.field)
}

// ValidationError reports a response body that did not match the expected shape.
type ValidationError struct {
	StatusCode int
	URL        string
	Body       []byte
	Cause      error
}

// Error returns a string representation of the validation error.
func (e *ValidationError) Error() string {
	body := e.Body
	if len(body) > maxBodyEcho {
		body = body[:maxBodyEcho]
	}
	return fmt.Sprintf("invalid response [%d] %s: %v: %s", e.StatusCode, e.URL, e.Cause, string(body))
}

// Unwrap returns the decoding or validation failure.
func (e *ValidationError) Unwrap() error { return e.Cause }

// AuthorizeError reports a rejected or failed login handshake.
type AuthorizeError struct {
	// Code is LINE's errorCode when the handshake was explicitly rejected.
	Code string
	// Message is LINE's error text, or a description of the failed step.
	Message string
	// Cause is the transport, validation or timeout error behind the failure.
	Cause error
}

// Error returns a string representation of the authorize error.
func (e *AuthorizeError) Error() string {
	switch {
	case e.Code != "" && e.Cause != nil:
		return fmt.Sprintf("authorize failed [%s] %s: %v", e.Code, e.Message, e.Cause)
	case e.Code != "":
		return fmt.Sprintf("authorize failed [%s] %s", e.Code, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("authorize failed: %s: %v", e.Message, e.Cause)
	default:
		return fmt.Sprintf("authorize failed: %s", e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *AuthorizeError) Unwrap() error { return e.Cause }

// QRLoginSessionError reports a failure while starting a QR login.
type QRLoginSessionError struct{ Err *AuthorizeError }

func (e *QRLoginSessionError) Error() string { return "qr login session: " + e.Err.Error() }
func (e *QRLoginSessionError) Unwrap() error { return e.Err }

// QRLoginWaitError reports a failure while waiting for the QR code to be scanned.
type QRLoginWaitError struct{ Err *AuthorizeError }

func (e *QRLoginWaitError) Error() string { return "qr login wait: " + e.Err.Error() }
func (e *QRLoginWaitError) Unwrap() error { return e.Err }

// QRLoginPINWaitError reports a failure while waiting for the PIN confirmation.
type QRLoginPINWaitError struct{ Err *AuthorizeError }

func (e *QRLoginPINWaitError) Error() string { return "qr login pin wait: " + e.Err.Error() }
func (e *QRLoginPINWaitError) Unwrap() error { return e.Err }

// GetGroupListError aborts a group listing; no partial list is returned.
type GetGroupListError struct {
	Page  int
	Cause error
}

func (e *GetGroupListError) Error() string {
	return fmt.Sprintf("get group list page %d: %v", e.Page, e.Cause)
}

func (e *GetGroupListError) Unwrap() error { return e.Cause }

// IssueTokenError reports a failed token issuance.
type IssueTokenError struct {
	Cause error
}

func (e *IssueTokenError) Error() string { return fmt.Sprintf("issue token: %v", e.Cause) }

func (e *IssueTokenError) Unwrap() error { return e.Cause }

// IsAuthorizeError checks if an error came from the login handshake.
func IsAuthorizeError(err error) bool {
	var authErr *AuthorizeError
	return errors.As(err, &authErr)
}

// IsValidationError checks if an error is a response validation error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func newValidationError(statusCode int, url string, body []byte, cause error) *ValidationError {
	return &ValidationError{StatusCode: statusCode, URL: url, Body: body, Cause: cause}
}
