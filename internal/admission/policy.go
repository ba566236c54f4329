package admission

import (
	"net/url"
	"strings"

	"github.com/CityBaseInc/cityscrape/internal/urlutil"
)

// DefaultAllowedExtensions are the path extensions that may be followed.
// The empty string stands for "no extension".
var DefaultAllowedExtensions = []string{"", ".html", ".aspx"}

// Config is the admission configuration for one crawl.
type Config struct {
	// Domain is the limiting domain, e.g. "cityofchicago.org".
	Domain string

	// RequiredPath, when set, must be a substring of every followed URL.
	RequiredPath string

	// Ignore lists substrings that exclude a URL from being followed.
	Ignore []string

	// AllowedExtensions lists followable path extensions including the dot.
	// Nil means DefaultAllowedExtensions.
	AllowedExtensions []string
}

// Policy evaluates admission decisions for a Config.
type Policy struct {
	domain       string
	requiredPath string
	ignore       []string
	extensions   map[string]struct{}
}

// NewPolicy builds a Policy. The domain is compared case-insensitively.
func NewPolicy(cfg Config) *Policy {
	exts := cfg.AllowedExtensions
	if exts == nil {
		exts = DefaultAllowedExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}

	ignore := make([]string, 0, len(cfg.Ignore))
	for _, s := range cfg.Ignore {
		if s != "" {
			ignore = append(ignore, s)
		}
	}

	return &Policy{
		domain:       normalizeDomain(cfg.Domain),
		requiredPath: cfg.RequiredPath,
		ignore:       ignore,
		extensions:   set,
	}
}

// Domain returns the normalized limiting domain.
func (p *Policy) Domain() string {
	return p.domain
}

// IsOutsideDomain reports whether rawURL's host is neither the limiting
// domain nor one of its subdomains.
func (p *Policy) IsOutsideDomain(rawURL string) bool {
	return IsOutsideDomain(rawURL, p.domain)
}

// IsWellFormed reports whether rawURL is an http(s) URL with a host that is
// not a mail or script link.
func (p *Policy) IsWellFormed(rawURL string) bool {
	return IsWellFormed(rawURL)
}

// ShouldFollow reports whether rawURL may be enqueued.
func (p *Policy) ShouldFollow(rawURL string) bool {
	if !IsWellFormed(rawURL) || p.IsOutsideDomain(rawURL) {
		return false
	}
	for _, s := range p.ignore {
		if strings.Contains(rawURL, s) {
			return false
		}
	}
	if p.requiredPath != "" && !strings.Contains(rawURL, p.requiredPath) {
		return false
	}
	_, ok := p.extensions[urlutil.Ext(rawURL)]
	return ok
}

// ShouldRecordAsExternal reports whether rawURL belongs in the outside-domain
// link collection. It is independent of the follow decision.
func (p *Policy) ShouldRecordAsExternal(rawURL string) bool {
	return p.IsOutsideDomain(rawURL)
}

// IsOutsideDomain reports whether rawURL's host is outside domain.
// An unparsable URL or one without a host is outside every domain.
func IsOutsideDomain(rawURL, domain string) bool {
	domain = normalizeDomain(domain)
	host := urlutil.Host(rawURL)
	if host == "" || domain == "" {
		return true
	}
	return host != domain && !strings.HasSuffix(host, "."+domain)
}

// IsWellFormed rejects mailto: and javascript: links, anything containing
// '@', non-http(s) schemes and URLs without a host.
func IsWellFormed(rawURL string) bool {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") {
		return false
	}
	if strings.Contains(rawURL, "@") {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// ShouldFollow is the functional form of Policy.ShouldFollow using the default
// allowed extensions.
func ShouldFollow(rawURL, domain, requiredPath string, ignore []string) bool {
	return NewPolicy(Config{Domain: domain, RequiredPath: requiredPath, Ignore: ignore}).ShouldFollow(rawURL)
}

// ShouldRecordAsExternal is the functional form of
// Policy.ShouldRecordAsExternal.
func ShouldRecordAsExternal(rawURL, domain string) bool {
	return IsOutsideDomain(rawURL, domain)
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, ".")
	return strings.TrimSuffix(d, ".")
}
