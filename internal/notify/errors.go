package notify

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrImageNotFound is returned before any request when a local image path does not exist.
	ErrImageNotFound = errors.New("notify: image file not found")
	// ErrStickerPair is returned when only one of sticker package id and sticker id is set.
	ErrStickerPair = errors.New("notify: sticker package id and sticker id must be given together")
	// ErrEmptyMessage is returned when the message text is blank.
	ErrEmptyMessage = errors.New("notify: message is required")
	// ErrEmptyToken is returned when the client has no bearer token.
	ErrEmptyToken = errors.New("notify: token is required")
)

// RateLimitError reports an HTTP 429 from the notify API.
type RateLimitError struct {
	Limit int
	Reset time.Time
	Cause error
}

// Error returns a string representation of the rate limit error.
func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return fmt.Sprintf("notify: rate limit reached (limit %d)", e.Limit)
	}
	return fmt.Sprintf("notify: rate limit reached (limit %d, resets %s)", e.Limit, e.Reset.Format(time.RFC3339))
}

// Unwrap returns the transport error carrying the 429 response.
func (e *RateLimitError) Unwrap() error { return e.Cause }

// IsRateLimited checks if an error is a rate limit error.
func IsRateLimited(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}
