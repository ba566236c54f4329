package model

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// NoTextFound is the single body word stored for pages without usable text.
const NoTextFound = "No text found"

// PageRecord holds the facts extracted from one successfully parsed page.
// It is created once and not modified afterwards.
type PageRecord struct {
	// PageID is 1-based and assigned in the order records are produced.
	PageID int `json:"page_id"`

	// OriginPageID is the PageID of the page the URL was discovered on,
	// or 0 for the seed and resumed URLs.
	OriginPageID int `json:"origin_page_id"`

	// Department is extracted from the URL path, empty when unknown.
	Department string `json:"department,omitempty"`

	// Title is the text of the <title> element.
	Title string `json:"title"`

	// CanonicalURL is the canonical form of the post-redirect URL.
	CanonicalURL string `json:"canonical_url"`

	// RequestedURL is the URL that was dequeued and fetched.
	RequestedURL string `json:"requested_url"`

	// StatusCode is the final HTTP status.
	StatusCode int `json:"status_code"`

	// ContentType is the response MIME type.
	ContentType string `json:"content_type,omitempty"`

	HasActionButton bool `json:"has_action_button"`
	HasNavPanel     bool `json:"has_nav_panel"`
	HasQuickLinks   bool `json:"has_quick_links"`

	EmailAddresses       []string `json:"email_addresses"`
	PDFLinks             []string `json:"pdf_links"`
	OutsideDomainLinks   []string `json:"outside_domain_links"`
	UniqueOutsideDomains []string `json:"unique_outside_domains"`

	// BodyWords is the filtered, lowercased word sequence of the page text.
	BodyWords []string `json:"body_words"`

	// LinksFound counts raw hrefs seen on the page.
	LinksFound int `json:"links_found"`

	// LinksQueued counts links this page added to the frontier.
	LinksQueued int `json:"links_queued"`

	// ContentHash is the blake2b-256 hex digest of the raw body.
	ContentHash string `json:"content_hash"`
}

// HasText reports whether the page produced any real body words.
func (p *PageRecord) HasText() bool {
	return len(p.BodyWords) > 0 && !(len(p.BodyWords) == 1 && p.BodyWords[0] == NoTextFound)
}

// WordCount returns the number of body words, 0 for pages without text.
func (p *PageRecord) WordCount() int {
	if !p.HasText() {
		return 0
	}
	return len(p.BodyWords)
}

// ContentHash returns the blake2b-256 hex digest of raw, or "" for empty
// content.
func ContentHash(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// DeadLink is a URL that could not be resolved to content.
type DeadLink struct {
	OriginPageID int    `json:"origin_page_id"`
	RequestedURL string `json:"requested_url"`

	// StatusCode is the HTTP status, 0 for transport failures.
	StatusCode int `json:"status_code,omitempty"`

	// Reason is a short description of the failure.
	Reason string `json:"reason"`

	// Timeout is true when the fetch exceeded its deadline.
	Timeout bool `json:"timeout,omitempty"`
}

// FailedParse is a page that was fetched but whose content could not be
// extracted.
type FailedParse struct {
	// PageID is the id the page would have been given.
	PageID int    `json:"page_id"`
	URL    string `json:"url"`
	Error  string `json:"error"`
}

// StringSet collects unique strings and returns them sorted.
type StringSet map[string]struct{}

// Add inserts s unless it is empty.
func (s StringSet) Add(v string) {
	if v = strings.TrimSpace(v); v != "" {
		s[v] = struct{}{}
	}
}

// Sorted returns the members in lexical order. It never returns nil.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
