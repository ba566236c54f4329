package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrDeadLink is matched by every DeadLinkError.
	ErrDeadLink = errors.New("dead link")

	// ErrTimeout is matched by every TimeoutError.
	ErrTimeout = errors.New("fetch timed out")

	// ErrTooManyRedirects is returned by the client's redirect policy.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrInvalidProxyURL is returned for unsupported or malformed proxy URLs.
	ErrInvalidProxyURL = errors.New("invalid proxy url: expected socks5://, http:// or https://")
)

// DeadLinkError describes a URL that could not be resolved to content.
type DeadLinkError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *DeadLinkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dead link %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("dead link %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *DeadLinkError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDeadLink) hold.
func (e *DeadLinkError) Is(target error) bool { return target == ErrDeadLink }

// TimeoutError describes a fetch that exceeded its deadline.
type TimeoutError struct {
	URL string
	Err error
}

// Error implements error.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout fetching %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTimeout) and errors.Is(err, ErrDeadLink) hold;
// a timeout is handled like a dead link.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == ErrDeadLink
}
