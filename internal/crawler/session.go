package crawler

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/CityBaseInc/cityscrape/internal/frontier"
	"github.com/CityBaseInc/cityscrape/internal/model"
)

// Session is the state of one crawl run: the frontier, the produced records
// and the diagnostics counters. A Session is used by exactly one Crawl call.
type Session struct {
	id       string
	budget   int
	frontier *frontier.Frontier

	scraped            atomic.Int64
	deadLinks          atomic.Int64
	timeouts           atomic.Int64
	failedReads        atomic.Int64
	duplicates         atomic.Int64
	offsiteRedirects   atomic.Int64
	outsideDomainLinks atomic.Int64
	totalWords         atomic.Int64

	mu           sync.Mutex
	pages        []model.PageRecord
	dead         []model.DeadLink
	failed       []model.FailedParse
	startedAt    time.Time
	finishedAt   time.Time
	stopReason   string
	resumedFrom  string
	resumeLoaded bool
}

// NewSession creates a session with a fresh frontier. An empty id gets a
// random UUID. A budget <= 0 means no page limit.
func NewSession(id string, budget int) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		id:       id,
		budget:   budget,
		frontier: frontier.New(),
		pages:    make([]model.PageRecord, 0),
		dead:     make([]model.DeadLink, 0),
		failed:   make([]model.FailedParse, 0),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Budget returns the page budget.
func (s *Session) Budget() int { return s.budget }

// Frontier returns the session's frontier.
func (s *Session) Frontier() *frontier.Frontier { return s.frontier }

// Resume loads visited and pending URLs from an earlier run. URLs containing
// any of skip are dropped. It returns the number of pending URLs queued.
func (s *Session) Resume(from string, visited, pending []string, skip []string) int {
	keep := func(u string) bool {
		for _, sub := range skip {
			if sub != "" && strings.Contains(u, sub) {
				return false
			}
		}
		return true
	}

	v := make([]string, 0, len(visited))
	for _, u := range visited {
		if keep(u) {
			v = append(v, u)
		}
	}
	p := make([]frontier.Entry, 0, len(pending))
	for _, u := range pending {
		if keep(u) {
			p = append(p, frontier.Entry{URL: u})
		}
	}

	n := s.frontier.Load(v, p)

	s.mu.Lock()
	s.resumedFrom = from
	s.resumeLoaded = s.resumeLoaded || n > 0
	s.mu.Unlock()
	return n
}

// Scraped returns the number of PageRecords produced so far.
func (s *Session) Scraped() int { return int(s.scraped.Load()) }

// budgetReached reports whether no further records may be produced.
func (s *Session) budgetReached() bool {
	return s.budget > 0 && s.Scraped() >= s.budget
}

// reservePageID hands out the next page id unless the budget is full.
func (s *Session) reservePageID() (int, bool) {
	for {
		cur := s.scraped.Load()
		if s.budget > 0 && cur >= int64(s.budget) {
			return 0, false
		}
		if s.scraped.CompareAndSwap(cur, cur+1) {
			return int(cur + 1), true
		}
	}
}

func (s *Session) start() {
	s.mu.Lock()
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	s.mu.Unlock()
}

func (s *Session) finish(reason string) {
	s.mu.Lock()
	s.finishedAt = time.Now()
	s.stopReason = reason
	s.mu.Unlock()
}

func (s *Session) addPage(rec model.PageRecord) {
	s.outsideDomainLinks.Add(int64(len(rec.OutsideDomainLinks)))
	s.totalWords.Add(int64(rec.WordCount()))

	s.mu.Lock()
	s.pages = append(s.pages, rec)
	s.mu.Unlock()
}

func (s *Session) addDeadLink(d model.DeadLink) {
	if d.Timeout {
		s.timeouts.Add(1)
	}
	s.deadLinks.Add(1)

	s.mu.Lock()
	s.dead = append(s.dead, d)
	s.mu.Unlock()
}

func (s *Session) addFailedParse(f model.FailedParse) {
	s.failedReads.Add(1)

	s.mu.Lock()
	s.failed = append(s.failed, f)
	s.mu.Unlock()
}

// Diagnostics returns a snapshot of the counters.
func (s *Session) Diagnostics() model.Diagnostics {
	s.mu.Lock()
	started, finished, reason := s.startedAt, s.finishedAt, s.stopReason
	s.mu.Unlock()

	end := finished
	if end.IsZero() {
		end = time.Now()
	}
	var elapsed time.Duration
	if !started.IsZero() {
		elapsed = end.Sub(started)
	}

	stats := s.frontier.Stats()
	return model.Diagnostics{
		PagesToCrawl:       s.budget,
		PagesVisited:       stats.Visited,
		PagesScraped:       s.Scraped(),
		DeadLinks:          int(s.deadLinks.Load()),
		Timeouts:           int(s.timeouts.Load()),
		FailedReads:        int(s.failedReads.Load()),
		RedirectDuplicates: int(s.duplicates.Load()),
		OffsiteRedirects:   int(s.offsiteRedirects.Load()),
		OutsideDomainLinks: int(s.outsideDomainLinks.Load()),
		TotalWords:         int(s.totalWords.Load()),
		RemainingQueue:     stats.Pending,
		StartedAt:          started,
		FinishedAt:         finished,
		Elapsed:            elapsed,
		StopReason:         reason,
	}
}

// Report assembles the records and frontier state into a CrawlReport.
func (s *Session) Report(startURL, domain string) *model.CrawlReport {
	r := model.NewCrawlReport(s.id, startURL, domain)

	s.mu.Lock()
	r.Pages = append(r.Pages, s.pages...)
	r.DeadLinks = append(r.DeadLinks, s.dead...)
	r.FailedParses = append(r.FailedParses, s.failed...)
	r.ResumedFrom = s.resumedFrom
	s.mu.Unlock()

	r.SortPages()
	r.Diagnostics = s.Diagnostics()

	for _, e := range s.frontier.Pending() {
		r.Pending = append(r.Pending, model.PendingURL{OriginPageID: e.OriginPageID, URL: e.URL})
	}
	r.Visited = s.frontier.Visited()
	return r
}

func (s *Session) hasResumeQueue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeLoaded
}
