package model

import (
	"sort"
	"time"
)

// Diagnostics is a snapshot of the run counters taken at termination.
type Diagnostics struct {
	// PagesToCrawl is the configured page budget.
	PagesToCrawl int `json:"pages_to_crawl"`

	// PagesVisited is the size of the visited set.
	PagesVisited int `json:"pages_visited"`

	// PagesScraped is the number of PageRecords produced.
	PagesScraped int `json:"pages_scraped"`

	DeadLinks          int `json:"dead_links"`
	Timeouts           int `json:"timeouts"`
	FailedReads        int `json:"failed_reads"`
	RedirectDuplicates int `json:"redirect_duplicates"`

	// OffsiteRedirects counts pages whose redirects left the limiting domain.
	OffsiteRedirects int `json:"offsite_redirects"`

	// OutsideDomainLinks counts outside-domain links across all pages,
	// with repeats.
	OutsideDomainLinks int `json:"outside_domain_links"`

	// TotalWords counts body words across all pages.
	TotalWords int `json:"total_words"`

	// RemainingQueue is the number of URLs still pending at termination.
	RemainingQueue int `json:"remaining_queue"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`

	// StopReason tells why the crawl ended: "frontier_empty", "budget",
	// or "canceled".
	StopReason string `json:"stop_reason"`
}

// Stop reasons.
const (
	StopFrontierEmpty = "frontier_empty"
	StopBudget        = "budget"
	StopCanceled      = "canceled"
)

// WordCount is one entry in a word frequency table.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// PendingURL is a URL left in the frontier at termination.
type PendingURL struct {
	OriginPageID int    `json:"origin_page_id"`
	URL          string `json:"url"`
}

// CrawlReport is everything one crawl run produced.
type CrawlReport struct {
	// SessionID identifies the run.
	SessionID string `json:"session_id"`

	// Site is the name of the configuration preset, empty for ad hoc runs.
	Site string `json:"site,omitempty"`

	StartURL string `json:"start_url"`
	Domain   string `json:"domain"`

	// ResumedFrom is the session the frontier was loaded from, if any.
	ResumedFrom string `json:"resumed_from,omitempty"`

	Pages        []PageRecord  `json:"pages"`
	DeadLinks    []DeadLink    `json:"dead_links"`
	FailedParses []FailedParse `json:"failed_parses"`
	Diagnostics  Diagnostics   `json:"diagnostics"`

	// Pending and Visited are the frontier state at termination.
	Pending []PendingURL `json:"pending,omitempty"`
	Visited []string     `json:"visited,omitempty"`

	// TopWords is filled by the word statistics step.
	TopWords []WordCount `json:"top_words,omitempty"`
}

// NewCrawlReport creates an empty report.
func NewCrawlReport(sessionID, startURL, domain string) *CrawlReport {
	return &CrawlReport{
		SessionID:    sessionID,
		StartURL:     startURL,
		Domain:       domain,
		Pages:        make([]PageRecord, 0),
		DeadLinks:    make([]DeadLink, 0),
		FailedParses: make([]FailedParse, 0),
	}
}

// UniqueOutsideDomains returns the union of outside domains over all pages.
func (r *CrawlReport) UniqueOutsideDomains() []string {
	set := StringSet{}
	for i := range r.Pages {
		for _, d := range r.Pages[i].UniqueOutsideDomains {
			set.Add(d)
		}
	}
	return set.Sorted()
}

// Emails returns the union of email addresses over all pages.
func (r *CrawlReport) Emails() []string {
	set := StringSet{}
	for i := range r.Pages {
		for _, e := range r.Pages[i].EmailAddresses {
			set.Add(e)
		}
	}
	return set.Sorted()
}

// PagesByDepartment counts pages per department. Pages without a department
// are counted under "".
func (r *CrawlReport) PagesByDepartment() map[string]int {
	out := make(map[string]int)
	for i := range r.Pages {
		out[r.Pages[i].Department]++
	}
	return out
}

// SortPages orders pages by PageID. Concurrent crawls append records in
// completion order.
func (r *CrawlReport) SortPages() {
	sort.SliceStable(r.Pages, func(i, j int) bool {
		return r.Pages[i].PageID < r.Pages[j].PageID
	})
}

// OutcomeCount is the number of URLs that ended in one outcome.
type OutcomeCount struct {
	Outcome Outcome `json:"outcome"`
	Count   int     `json:"count"`
}

// OutcomeCounts returns the per-outcome totals of the run in Outcome order,
// skipping outcomes that never occurred.
func (r *CrawlReport) OutcomeCounts() []OutcomeCount {
	d := r.Diagnostics
	dead := len(r.DeadLinks) - d.Timeouts
	if dead < 0 {
		dead = 0
	}
	all := []OutcomeCount{
		{OutcomeRecorded, len(r.Pages)},
		{OutcomeDead, dead},
		{OutcomeTimeout, d.Timeouts},
		{OutcomeFailedParse, len(r.FailedParses)},
		{OutcomeDuplicate, d.RedirectDuplicates},
		{OutcomeOffsite, d.OffsiteRedirects},
	}
	out := make([]OutcomeCount, 0, len(all))
	for _, c := range all {
		if c.Count > 0 {
			out = append(out, c)
		}
	}
	return out
}
