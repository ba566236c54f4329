package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "cityscrape"

	// DefaultPageBudget is the number of page records a crawl may produce.
	DefaultPageBudget = 100

	// DefaultWorkers is the number of concurrent fetch+parse workers.
	DefaultWorkers = 4

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultDelay is the minimum gap between two requests to one host.
	DefaultDelay = 250 * time.Millisecond

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxRedirects is the redirect chain length that turns a URL into
	// a dead link.
	DefaultMaxRedirects = 10

	// DefaultUserAgent identifies the crawler in server logs.
	DefaultUserAgent = "cityscrape/1.0 (+https://github.com/CityBaseInc/cityscrape)"

	// DefaultCSVDelimiter separates CSV columns.
	DefaultCSVDelimiter = ","

	// DefaultTopWords is the size of the word frequency table.
	DefaultTopWords = 25

	// DefaultBatchSize is the number of site presets crawled at once.
	DefaultBatchSize = 2

	// DatabaseFile is the SQLite file name inside DBDir.
	DatabaseFile = "cityscrape.db"
)

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
)

// Config holds every option of one crawl. It is populated from defaults, a
// site preset and CLI flags, in that order.
type Config struct {
	// Site is the preset name, empty for ad hoc crawls.
	Site string

	// StartURL is the seed of the crawl.
	StartURL string

	// Domain is the limiting domain. When empty it is derived from StartURL
	// by Normalize.
	Domain string

	// RequiredPath, when set, must appear in every followed URL.
	RequiredPath string

	// Ignore lists substrings that exclude a URL from following.
	Ignore []string

	// AllowedExtensions lists the path extensions that are followed. Nil
	// means the admission defaults ("", .html, .aspx).
	AllowedExtensions []string

	// PageBudget caps the number of page records. Zero means no limit.
	PageBudget int

	Workers int

	Timeout time.Duration

	// Delay is the minimum gap between requests to one host.
	Delay time.Duration

	// RatePerSecond is a per-host token bucket rate. Zero disables it.
	RatePerSecond float64

	MaxBodySize int64

	UserAgent string

	// Cookie is sent on every request, "name=value; name2=value2".
	Cookie string

	// Headers are extra request headers.
	Headers map[string]string

	// ProxyURL routes requests through an http(s) or socks5 proxy.
	ProxyURL string

	MaxRedirects int

	// LegacyResolve enables bare-host recovery for hrefs such as
	// "www.example.org/page".
	LegacyResolve bool

	// LinkSection is the CSS class of the div links are taken from.
	LinkSection string

	// TextSelectors replace <p> text as the body text source.
	TextSelectors []string

	ActionButtonSelector string
	NavPanelSelector     string

	// DepartmentPatterns are regexes whose first submatch is the department.
	// Nil means the crawler defaults.
	DepartmentPatterns []string

	// OmitWords are dropped from body words. Nil means the crawler defaults.
	OmitWords []string

	StemWords bool

	// VisitedFile and QueueFile seed the frontier from an earlier run.
	VisitedFile string
	QueueFile   string

	// ResumeSession loads the frontier stored for a session in the database.
	ResumeSession string

	// SkipSubstrings drops resumed URLs containing any of them.
	SkipSubstrings []string

	// OutputDir receives CSV and XLSX exports.
	OutputDir string

	// OutputFormats lists the reports to produce. See the Format constants.
	OutputFormats []string

	// ReportFile receives the stdout report instead of stdout when set.
	ReportFile string

	CSVDelimiter string

	// TopWords is the size of the word frequency table. Zero disables it.
	TopWords int

	// DBDir holds the SQLite database. Empty means XDGDataDir.
	DBDir string

	SaveToDB bool

	// BatchSize is the number of site presets crawled concurrently.
	BatchSize int

	Verbose bool

	// ConfigFilePath is an explicit configuration file location.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		PageBudget:    DefaultPageBudget,
		Workers:       DefaultWorkers,
		Timeout:       DefaultTimeout,
		Delay:         DefaultDelay,
		MaxBodySize:   DefaultMaxBodySize,
		MaxRedirects:  DefaultMaxRedirects,
		UserAgent:     DefaultUserAgent,
		CSVDelimiter:  DefaultCSVDelimiter,
		TopWords:      DefaultTopWords,
		BatchSize:     DefaultBatchSize,
		OutputFormats: []string{FormatText},
	}
}

// XDGDataDir returns the data directory, ~/.local/share/cityscrape on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, ~/.config/cityscrape on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DatabasePath returns the SQLite file location for c.
func (c *Config) DatabasePath() string {
	dir := c.DBDir
	if dir == "" {
		dir = XDGDataDir()
	}
	return filepath.Join(dir, DatabaseFile)
}

// Normalize fills derived fields: the domain from the start URL and
// lowercased output formats.
func (c *Config) Normalize() {
	c.StartURL = strings.TrimSpace(c.StartURL)
	if c.Domain == "" && c.StartURL != "" {
		if u, err := url.Parse(c.StartURL); err == nil {
			c.Domain = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		}
	}
	c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))

	formats := make([]string, 0, len(c.OutputFormats))
	for _, f := range c.OutputFormats {
		for _, part := range strings.Split(f, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				formats = append(formats, part)
			}
		}
	}
	c.OutputFormats = formats
}

// Validate checks c and returns the first problem found.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return ErrNoStartURL
	}
	if c.Domain == "" {
		return ErrNoDomain
	}
	if c.PageBudget < 0 {
		return ErrInvalidBudget
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.RatePerSecond < 0 {
		return ErrInvalidRate
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	for _, f := range c.OutputFormats {
		if !isKnownFormat(f) {
			return fmt.Errorf("%w: %q", ErrUnknownOutputFormat, f)
		}
	}
	if _, err := c.Delimiter(); err != nil {
		return err
	}
	return nil
}

// Delimiter returns the CSV delimiter as a rune.
func (c *Config) Delimiter() (rune, error) {
	d := c.CSVDelimiter
	if d == "" {
		d = DefaultCSVDelimiter
	}
	if d == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDelimiter, d)
	}
	return r, nil
}

// HasFormat reports whether f was requested.
func (c *Config) HasFormat(f string) bool {
	for _, v := range c.OutputFormats {
		if v == f {
			return true
		}
	}
	return false
}

func isKnownFormat(f string) bool {
	switch f {
	case FormatText, FormatJSON, FormatMarkdown, FormatCSV, FormatXLSX:
		return true
	}
	return false
}
