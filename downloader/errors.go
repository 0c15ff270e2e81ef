package downloader

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorizationDenied is returned when the user refuses the consent screen.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrNotAuthorized is returned by FetchSeries before RequestAuthorization succeeded.
	ErrNotAuthorized = errors.New("not authorized")
)

// RateLimitError is returned when the Fitbit API answers 429.
type RateLimitError struct {
	RetryAfter int    // Seconds until next request is allowed
	Message    string // Error message from Fitbit API
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded: %s. Try again in %d seconds", e.Message, e.RetryAfter)
}
