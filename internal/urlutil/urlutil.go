package urlutil

import (
	"net/url"
	"strings"
)

// ResolveMode selects how Resolve treats relative hrefs.
type ResolveMode int

const (
	// ResolveStrict resolves relative hrefs per RFC 3986 only.
	ResolveStrict ResolveMode = iota
	// ResolveLegacy additionally treats scheme-less hrefs that look like
	// bare hosts ("www.example.com/x", "example.edu/x") as absolute http URLs.
	ResolveLegacy
)

// String returns the mode name as used in configuration files.
func (m ResolveMode) String() string {
	switch m {
	case ResolveLegacy:
		return "legacy"
	default:
		return "strict"
	}
}

// bareHostSuffixes are the TLD suffixes that mark a first path segment as a
// host in legacy mode.
var bareHostSuffixes = []string{".edu", ".org", ".com", ".net"}

// IsAbsolute reports whether rawURL has a non-empty network location.
func IsAbsolute(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return u.Host != ""
}

// RemoveFragment strips a "#fragment" suffix. It never fails: unparsable
// input is cut at the first '#'.
func RemoveFragment(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// Resolve turns candidate into an absolute URL relative to base.
// It returns "" and false when candidate is empty, base is not absolute,
// or candidate cannot be parsed.
func Resolve(base, candidate string, mode ResolveMode) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || !IsAbsolute(base) {
		return "", false
	}
	if IsAbsolute(candidate) {
		return candidate, true
	}

	if mode == ResolveLegacy {
		if looksLikeBareHost(candidate) || strings.HasPrefix(candidate, "www") {
			return "http://" + candidate, true
		}
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	return baseURL.ResolveReference(ref).String(), true
}

// looksLikeBareHost reports whether the first path segment of candidate
// ends in one of bareHostSuffixes.
func looksLikeBareHost(candidate string) bool {
	first := candidate
	if i := strings.IndexAny(candidate, "/?#"); i >= 0 {
		first = candidate[:i]
	}
	if len(first) < 4 {
		return false
	}
	tail := strings.ToLower(first[len(first)-4:])
	for _, suffix := range bareHostSuffixes {
		if tail == suffix {
			return true
		}
	}
	return false
}

// Canonicalize returns the dedup key for rawURL: scheme and host lowercased,
// fragment removed, trailing slashes removed from the path.
// Canonicalize(Canonicalize(u)) == Canonicalize(u) for every u.
func Canonicalize(rawURL string) string {
	trimmed := strings.TrimSpace(RemoveFragment(rawURL))
	u, err := url.Parse(trimmed)
	if err != nil {
		return strings.TrimRight(strings.ToLower(trimmed), "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.ForceQuery = false

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	out := u.String()
	if u.RawQuery == "" {
		// An opaque or host-only URL can still end in '/'.
		out = strings.TrimRight(out, "/")
	}
	return out
}

// Host returns the lowercased host of rawURL without port, or "" when it
// cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Ext returns the lowercased extension of the last path segment of rawURL,
// including the dot, or "" when there is none.
func Ext(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	p := u.Path
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return strings.ToLower(p[i:])
	}
	return ""
}
