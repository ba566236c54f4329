package config

import "errors"

// Configuration validation errors returned by Config.Validate. Callers test
// them with errors.Is.
var (
	// ErrNoStartURL is returned when neither --url nor a site preset gives a
	// start URL.
	ErrNoStartURL = errors.New("no start URL specified: provide --url or --site")

	// ErrNoDomain is returned when the limiting domain is empty and cannot be
	// derived from the start URL.
	ErrNoDomain = errors.New("no limiting domain: provide --domain")

	// ErrInvalidBudget is returned when the page budget is negative.
	ErrInvalidBudget = errors.New("invalid page budget: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when the request delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidRate is returned when the per-host request rate is negative.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxRedirects is returned when the redirect limit is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrUnknownOutputFormat is returned for an output format other than
	// text, json, markdown, csv or xlsx.
	ErrUnknownOutputFormat = errors.New("unknown output format")

	// ErrInvalidDelimiter is returned when the CSV delimiter is not a single
	// character usable by encoding/csv.
	ErrInvalidDelimiter = errors.New("invalid CSV delimiter")

	// ErrUnknownSite is returned when a named site preset is not in the
	// configuration file.
	ErrUnknownSite = errors.New("unknown site preset")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
