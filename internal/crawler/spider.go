package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/CityBaseInc/cityscrape/internal/admission"
	"github.com/CityBaseInc/cityscrape/internal/fetcher"
	"github.com/CityBaseInc/cityscrape/internal/frontier"
	"github.com/CityBaseInc/cityscrape/internal/model"
	"github.com/CityBaseInc/cityscrape/internal/urlutil"
)

// DefaultWorkers is the number of concurrent fetch+parse workers.
const DefaultWorkers = 4

// Spider drives the crawl: it pulls URLs from the session frontier, fetches
// and parses them, feeds admitted links back into the frontier and records
// the outcome of every URL.
type Spider struct {
	fetcher   fetcher.Fetcher
	policy    *admission.Policy
	parser    *Parser
	extractor *FieldExtractor
	workers   int
	sink      Sink
	logger    *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets the number of concurrent workers. Values below 1 mean 1.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

// WithParser replaces the default parser.
func WithParser(p *Parser) SpiderOption {
	return func(s *Spider) {
		s.parser = p
	}
}

// WithExtractor replaces the default field extractor.
func WithExtractor(e *FieldExtractor) SpiderOption {
	return func(s *Spider) {
		s.extractor = e
	}
}

// WithSink streams records to sink as they are produced.
func WithSink(sink Sink) SpiderOption {
	return func(s *Spider) {
		s.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that fetches with f and admits links with policy.
func NewSpider(f fetcher.Fetcher, policy *admission.Policy, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher: f,
		policy:  policy,
		workers: DefaultWorkers,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser, _ = NewParser(ParserOptions{}) //nolint:errcheck // default selectors are valid
	}
	if s.extractor == nil {
		s.extractor, _ = NewFieldExtractor(policy, ExtractorOptions{}) //nolint:errcheck // default patterns are valid
	}
	return s
}

// Crawl runs session to completion starting from seed. The seed is only
// enqueued when the session was not resumed with pending URLs.
//
// The crawl ends when the frontier is empty and no page is in flight, when
// the page budget is filled, or when ctx is canceled. Cancellation is a
// normal termination: the partial report is returned with StopReason
// "canceled" and interrupted URLs stay pending. Only configuration errors
// are returned as errors.
func (s *Spider) Crawl(ctx context.Context, session *Session, seed string) (*model.CrawlReport, error) {
	if err := s.checkSeed(seed); err != nil {
		return nil, err
	}

	session.start()
	fr := session.Frontier()
	if !session.hasResumeQueue() {
		fr.Enqueue(0, seed)
	}

	s.logger.Info("crawl started",
		"session", session.ID(),
		"seed", seed,
		"domain", s.policy.Domain(),
		"budget", session.Budget(),
		"workers", s.workers,
		"pending", fr.Len())

	reason := s.dispatch(ctx, session)
	session.finish(reason)

	report := session.Report(seed, s.policy.Domain())
	d := report.Diagnostics
	s.logger.Info("crawl finished",
		"session", session.ID(),
		"reason", reason,
		"scraped", d.PagesScraped,
		"visited", d.PagesVisited,
		"dead_links", d.DeadLinks,
		"failed_reads", d.FailedReads,
		"remaining", d.RemainingQueue,
		"elapsed", d.Elapsed)
	return report, nil
}

// dispatch hands frontier entries to at most s.workers goroutines and
// returns the stop reason. It never dispatches more entries than the budget
// can still absorb, so the number of records cannot exceed the budget.
func (s *Spider) dispatch(ctx context.Context, session *Session) string {
	fr := session.Frontier()
	done := make(chan struct{}, s.workers+1)

	var g errgroup.Group
	g.SetLimit(s.workers)
	defer func() { _ = g.Wait() }() //nolint:errcheck // workers never return errors

	inflight := 0
	wait := func() {
		select {
		case <-done:
			inflight--
		case <-ctx.Done():
		}
	}

	for {
		for drained := false; !drained; {
			select {
			case <-done:
				inflight--
			default:
				drained = true
			}
		}

		if ctx.Err() != nil {
			return model.StopCanceled
		}
		if session.budgetReached() {
			return model.StopBudget
		}
		if inflight >= s.workers || (session.Budget() > 0 && session.Scraped()+inflight >= session.Budget()) {
			wait()
			continue
		}

		entry, ok := fr.Dequeue()
		if !ok {
			if inflight == 0 {
				return model.StopFrontierEmpty
			}
			wait()
			continue
		}

		inflight++
		g.Go(func() error {
			defer func() { done <- struct{}{} }()
			s.process(ctx, session, entry)
			return nil
		})
	}
}

// process runs one URL through fetch, dedup, parse, admit and record.
func (s *Spider) process(ctx context.Context, session *Session, entry frontier.Entry) model.Outcome {
	fr := session.Frontier()
	res := s.fetcher.Fetch(ctx, entry.URL)

	switch res.Outcome {
	case fetcher.OutcomeCanceled:
		fr.Release(entry)
		return model.OutcomeInterrupted
	case fetcher.OutcomeDead, fetcher.OutcomeTimeout:
		fr.MarkVisited(entry.URL)
		dl := model.DeadLink{
			OriginPageID: entry.OriginPageID,
			RequestedURL: entry.URL,
			StatusCode:   res.StatusCode,
			Reason:       errString(res.Err),
			Timeout:      res.Outcome == fetcher.OutcomeTimeout,
		}
		session.addDeadLink(dl)
		s.emit(ctx, func(ctx context.Context, sink Sink) error { return sink.OnDeadLink(ctx, dl) })
		s.logger.Debug("dead link", "url", entry.URL, "origin", entry.OriginPageID, "reason", dl.Reason)
		if dl.Timeout {
			return model.OutcomeTimeout
		}
		return model.OutcomeDead
	}

	trueURL := res.TrueURL
	if trueURL == "" {
		trueURL = entry.URL
	}
	claimed := fr.Claim(trueURL)
	fr.MarkVisited(entry.URL)
	if !claimed {
		session.duplicates.Add(1)
		s.logger.Debug("redirect target already visited", "url", entry.URL, "true_url", trueURL)
		return model.OutcomeDuplicate
	}
	if s.policy.IsOutsideDomain(trueURL) {
		session.offsiteRedirects.Add(1)
		s.logger.Debug("redirected outside domain", "url", entry.URL, "true_url", trueURL)
		return model.OutcomeOffsite
	}

	parsed, err := s.parse(trueURL, res)
	if err != nil {
		fp := model.FailedParse{PageID: session.Scraped() + 1, URL: trueURL, Error: err.Error()}
		session.addFailedParse(fp)
		s.emit(ctx, func(ctx context.Context, sink Sink) error { return sink.OnFailedParse(ctx, fp) })
		s.logger.Warn("failed to parse page", "url", trueURL, "error", err)
		return model.OutcomeFailedParse
	}

	id, ok := session.reservePageID()
	if !ok {
		return model.OutcomeOverBudget
	}

	ex := s.extractor.Extract(parsed, trueURL)
	queued := 0
	for _, link := range ex.Follow {
		if fr.Enqueue(id, link) {
			queued++
		}
	}

	rec := model.PageRecord{
		PageID:               id,
		OriginPageID:         entry.OriginPageID,
		Department:           ex.Department,
		Title:                parsed.Title,
		CanonicalURL:         urlutil.Canonicalize(trueURL),
		RequestedURL:         entry.URL,
		StatusCode:           res.StatusCode,
		ContentType:          res.ContentType,
		HasActionButton:      parsed.HasActionButton,
		HasNavPanel:          parsed.HasNavPanel,
		HasQuickLinks:        parsed.HasQuickLinks,
		EmailAddresses:       ex.EmailAddresses,
		PDFLinks:             ex.PDFLinks,
		OutsideDomainLinks:   ex.OutsideDomainLinks,
		UniqueOutsideDomains: ex.UniqueOutsideDomains,
		BodyWords:            ex.BodyWords,
		LinksFound:           len(parsed.Links),
		LinksQueued:          queued,
		ContentHash:          model.ContentHash(res.Body),
	}
	session.addPage(rec)
	s.emit(ctx, func(ctx context.Context, sink Sink) error { return sink.OnPage(ctx, rec) })
	s.logger.Info("page recorded", "id", id, "url", rec.CanonicalURL, "links", rec.LinksFound, "queued", queued)
	return model.OutcomeRecorded
}

func (s *Spider) parse(pageURL string, res fetcher.Result) (*ParseResult, error) {
	if !IsHTML(res.ContentType) {
		return nil, &ParseError{URL: pageURL, Err: fmt.Errorf("%w: %s", ErrUnsupportedContent, res.ContentType)}
	}
	parsed, err := s.parser.Parse(bytes.NewReader(res.Body))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: err}
	}
	return parsed, nil
}

// emit forwards a record to the sink. Sink writes outlive cancellation of
// the crawl so records already produced are not lost.
func (s *Spider) emit(ctx context.Context, fn func(context.Context, Sink) error) {
	if s.sink == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), s.sink); err != nil {
		s.logger.Warn("sink write failed", "error", err)
	}
}

func (s *Spider) checkSeed(seed string) error {
	if s.policy == nil || s.policy.Domain() == "" {
		return &ConfigurationError{Field: "limiting domain", Reason: "must not be empty"}
	}
	if !urlutil.IsAbsolute(seed) {
		return &ConfigurationError{Field: "start URL", Reason: fmt.Sprintf("%q is not an absolute URL", seed)}
	}
	if !admission.IsWellFormed(seed) {
		return &ConfigurationError{Field: "start URL", Reason: fmt.Sprintf("%q is not an http(s) URL", seed)}
	}
	if s.policy.IsOutsideDomain(seed) {
		return &ConfigurationError{Field: "start URL", Reason: fmt.Sprintf("%q is outside %s", seed, s.policy.Domain())}
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
