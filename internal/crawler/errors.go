package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is matched by every ParseError.
	ErrParse = errors.New("parse failed")

	// ErrUnsupportedContent is wrapped when a response is not HTML.
	ErrUnsupportedContent = errors.New("unsupported content type")

	// ErrInvalidConfig is matched by every ConfigurationError.
	ErrInvalidConfig = errors.New("invalid crawl configuration")
)

// ParseError describes a page that was fetched but could not be extracted.
type ParseError struct {
	URL string
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrParse) hold.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ConfigurationError is returned before any fetch when the crawl cannot
// start, for example because the seed URL is not absolute.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidConfig) hold.
func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfig }
