package crawler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CityBaseInc/cityscrape/internal/admission"
	"github.com/CityBaseInc/cityscrape/internal/model"
	"github.com/CityBaseInc/cityscrape/internal/urlutil"
)

// DefaultDepartmentPatterns extract the department slug from city URLs such
// as /city/en/depts/fin/supp_info.html or /city/en/depts/fin.html.
var DefaultDepartmentPatterns = []string{`depts/(.+?)/`, `depts/(.+?)\.`}

// ExtractorOptions configures a FieldExtractor.
type ExtractorOptions struct {
	// ResolveMode selects strict or legacy relative URL resolution.
	ResolveMode urlutil.ResolveMode

	// DepartmentPatterns are tried in order against the page URL; the first
	// submatch of the first matching pattern is the department.
	// Nil means DefaultDepartmentPatterns; an empty slice disables it.
	DepartmentPatterns []string

	// OmitWords are dropped from body words. Nil means DefaultOmitWords.
	OmitWords []string

	// StemWords reduces body words to their English stem.
	StemWords bool
}

// FieldExtractor turns a ParseResult into the link sets and page facts of a
// PageRecord, applying the admission policy to every link.
type FieldExtractor struct {
	policy      *admission.Policy
	mode        urlutil.ResolveMode
	departments []*regexp.Regexp
	words       *WordFilter
}

// Extraction is the per-page output of a FieldExtractor.
type Extraction struct {
	// Follow are resolved links admitted by the policy, deduplicated.
	Follow []string

	Department           string
	EmailAddresses       []string
	PDFLinks             []string
	OutsideDomainLinks   []string
	UniqueOutsideDomains []string
	BodyWords            []string
}

// NewFieldExtractor compiles the department patterns and returns an extractor.
func NewFieldExtractor(policy *admission.Policy, opts ExtractorOptions) (*FieldExtractor, error) {
	patterns := opts.DepartmentPatterns
	if patterns == nil {
		patterns = DefaultDepartmentPatterns
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid department pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return &FieldExtractor{
		policy:      policy,
		mode:        opts.ResolveMode,
		departments: compiled,
		words:       NewWordFilter(opts.OmitWords, opts.StemWords),
	}, nil
}

// Extract resolves the parsed links against pageURL and sorts them into the
// followed, PDF and outside-domain collections.
func (e *FieldExtractor) Extract(parsed *ParseResult, pageURL string) Extraction {
	follow := newOrderedSet()
	pdfs := model.StringSet{}
	outside := model.StringSet{}
	domains := model.StringSet{}

	for _, href := range parsed.Links {
		resolved, ok := urlutil.Resolve(pageURL, href, e.mode)
		if !ok {
			continue
		}
		resolved = urlutil.RemoveFragment(resolved)

		if urlutil.Ext(resolved) == ".pdf" {
			pdfs.Add(resolved)
		}
		if e.policy.IsWellFormed(resolved) && e.policy.ShouldRecordAsExternal(resolved) {
			outside.Add(resolved)
			domains.Add(strings.TrimPrefix(urlutil.Host(resolved), "www."))
		}
		if e.policy.ShouldFollow(resolved) {
			follow.add(resolved)
		}
	}

	emails := model.StringSet{}
	for _, addr := range parsed.Emails {
		emails.Add(addr)
	}

	return Extraction{
		Follow:               follow.items,
		Department:           e.Department(pageURL),
		EmailAddresses:       emails.Sorted(),
		PDFLinks:             pdfs.Sorted(),
		OutsideDomainLinks:   outside.Sorted(),
		UniqueOutsideDomains: domains.Sorted(),
		BodyWords:            e.words.Words(parsed.BodyText),
	}
}

// Department returns the department slug found in pageURL, or "".
func (e *FieldExtractor) Department(pageURL string) string {
	for _, re := range e.departments {
		if m := re.FindStringSubmatch(pageURL); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}
