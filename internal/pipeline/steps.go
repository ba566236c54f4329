package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CityBaseInc/cityscrape/internal/admission"
	"github.com/CityBaseInc/cityscrape/internal/config"
	"github.com/CityBaseInc/cityscrape/internal/crawler"
	"github.com/CityBaseInc/cityscrape/internal/database"
	"github.com/CityBaseInc/cityscrape/internal/fetcher"
	"github.com/CityBaseInc/cityscrape/internal/model"
	"github.com/CityBaseInc/cityscrape/internal/report"
	"github.com/CityBaseInc/cityscrape/internal/urlutil"
)

// Step names.
const (
	StepSession = "session"
	StepCrawl   = "crawl"
	StepWords   = "words"
	StepPersist = "persist"
	StepExport  = "export"
	StepOutput  = "output"
)

// SessionStep records the start of the session in the database, so records
// streamed during the crawl belong to a known session.
type SessionStep struct {
	db  *database.CrawlDB
	now func() time.Time
}

// NewSessionStep creates a SessionStep.
func NewSessionStep(db *database.CrawlDB) *SessionStep {
	return &SessionStep{db: db, now: time.Now}
}

// Name returns the step name.
func (s *SessionStep) Name() string { return StepSession }

// Do executes the step.
func (s *SessionStep) Do(ctx context.Context, r *model.CrawlReport) error {
	return s.db.BeginSession(ctx, r, s.now())
}

// CrawlStep runs the spider and fills the report with its result.
type CrawlStep struct {
	cfg     *config.Config
	fetcher fetcher.Fetcher
	sink    crawler.Sink
	resume  *Resume
	logger  *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithFetcher replaces the HTTP fetcher built from the configuration.
func WithFetcher(f fetcher.Fetcher) CrawlStepOption {
	return func(s *CrawlStep) {
		s.fetcher = f
	}
}

// WithSink streams records while the crawl runs.
func WithSink(sink crawler.Sink) CrawlStepOption {
	return func(s *CrawlStep) {
		s.sink = sink
	}
}

// WithResume seeds the frontier from an earlier run.
func WithResume(r *Resume) CrawlStepOption {
	return func(s *CrawlStep) {
		s.resume = r
	}
}

// WithCrawlLogger sets the logger passed to the fetcher and spider.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a CrawlStep for cfg.
func NewCrawlStep(cfg *config.Config, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string { return StepCrawl }

// Do executes the crawl. Cancellation is not an error: the partial result is
// copied into r.
func (s *CrawlStep) Do(ctx context.Context, r *model.CrawlReport) error {
	spider, err := s.spider()
	if err != nil {
		return err
	}

	session := crawler.NewSession(r.SessionID, s.cfg.PageBudget)
	if s.resume != nil && !s.resume.Empty() {
		n := session.Resume(s.resume.From, s.resume.Visited, s.resume.Pending, s.cfg.SkipSubstrings)
		s.logger.Info("frontier resumed",
			"from", s.resume.From,
			"visited", len(s.resume.Visited),
			"pending", n)
	}

	result, err := spider.Crawl(ctx, session, s.cfg.StartURL)
	if err != nil {
		return err
	}

	site := r.Site
	*r = *result
	r.Site = site
	return nil
}

func (s *CrawlStep) spider() (*crawler.Spider, error) {
	cfg := s.cfg
	policy := admission.NewPolicy(admission.Config{
		Domain:            cfg.Domain,
		RequiredPath:      cfg.RequiredPath,
		Ignore:            cfg.Ignore,
		AllowedExtensions: cfg.AllowedExtensions,
	})

	parser, err := crawler.NewParser(crawler.ParserOptions{
		LinkSection:          cfg.LinkSection,
		TextSelectors:        cfg.TextSelectors,
		ActionButtonSelector: cfg.ActionButtonSelector,
		NavPanelSelector:     cfg.NavPanelSelector,
	})
	if err != nil {
		return nil, err
	}

	mode := urlutil.ResolveStrict
	if cfg.LegacyResolve {
		mode = urlutil.ResolveLegacy
	}
	extractor, err := crawler.NewFieldExtractor(policy, crawler.ExtractorOptions{
		ResolveMode:        mode,
		DepartmentPatterns: cfg.DepartmentPatterns,
		OmitWords:          cfg.OmitWords,
		StemWords:          cfg.StemWords,
	})
	if err != nil {
		return nil, err
	}

	f := s.fetcher
	if f == nil {
		if f, err = NewFetcher(cfg, s.logger); err != nil {
			return nil, err
		}
	}

	opts := []crawler.SpiderOption{
		crawler.WithWorkers(cfg.Workers),
		crawler.WithParser(parser),
		crawler.WithExtractor(extractor),
		crawler.WithLogger(s.logger),
	}
	if s.sink != nil {
		opts = append(opts, crawler.WithSink(s.sink))
	}
	return crawler.NewSpider(f, policy, opts...), nil
}

// NewFetcher builds the HTTP fetcher described by cfg.
func NewFetcher(cfg *config.Config, logger *slog.Logger) (*fetcher.HTTPFetcher, error) {
	client, err := fetcher.NewHTTPClient(fetcher.ClientOptions{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		ProxyURL:     cfg.ProxyURL,
		Cookie:       cfg.Cookie,
		Headers:      cfg.Headers,
	})
	if err != nil {
		return nil, &crawler.ConfigurationError{Field: "proxy URL", Reason: err.Error()}
	}
	return fetcher.New(client,
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithLimiter(fetcher.NewHostLimiter(cfg.RatePerSecond, cfg.Delay)),
		fetcher.WithLogger(logger),
	), nil
}

// WordsStep fills the report's top words table.
type WordsStep struct {
	n int
}

// NewWordsStep creates a WordsStep keeping the n most frequent words.
func NewWordsStep(n int) *WordsStep {
	return &WordsStep{n: n}
}

// Name returns the step name.
func (s *WordsStep) Name() string { return StepWords }

// Do executes the step.
func (s *WordsStep) Do(_ context.Context, r *model.CrawlReport) error {
	r.TopWords = crawler.TopWords(r.Pages, s.n)
	return nil
}

func (s *WordsStep) runsAfterCancel() {}

// PersistStep saves the finished report and its frontier.
type PersistStep struct {
	db *database.CrawlDB
}

// NewPersistStep creates a PersistStep.
func NewPersistStep(db *database.CrawlDB) *PersistStep {
	return &PersistStep{db: db}
}

// Name returns the step name.
func (s *PersistStep) Name() string { return StepPersist }

// Do executes the step.
func (s *PersistStep) Do(ctx context.Context, r *model.CrawlReport) error {
	return s.db.SaveReport(ctx, r)
}

func (s *PersistStep) runsAfterCancel() {}

// ExportStep writes CSV files and an XLSX workbook.
type ExportStep struct {
	exporter *report.Exporter
	csv      bool
	xlsx     bool
	logger   *slog.Logger
}

// NewExportStep creates an ExportStep. Formats other than csv and xlsx are
// ignored.
func NewExportStep(exporter *report.Exporter, formats []string, logger *slog.Logger) *ExportStep {
	s := &ExportStep{exporter: exporter, logger: logger}
	for _, f := range formats {
		switch f {
		case config.FormatCSV:
			s.csv = true
		case config.FormatXLSX:
			s.xlsx = true
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *ExportStep) Name() string { return StepExport }

// Do executes the step.
func (s *ExportStep) Do(_ context.Context, r *model.CrawlReport) error {
	if s.csv {
		paths, err := s.exporter.ExportCSV(r)
		if err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
		s.logger.Info("csv exported", "files", len(paths), "session", r.SessionID)
	}
	if s.xlsx {
		path, err := s.exporter.ExportXLSX(r)
		if err != nil {
			return fmt.Errorf("xlsx export: %w", err)
		}
		s.logger.Info("workbook exported", "path", path, "session", r.SessionID)
	}
	return nil
}

func (s *ExportStep) runsAfterCancel() {}

// OutputStep writes the report with a report.Writer.
type OutputStep struct {
	writer report.Writer
}

// NewOutputStep creates an OutputStep.
func NewOutputStep(w report.Writer) *OutputStep {
	return &OutputStep{writer: w}
}

// Name returns the step name.
func (s *OutputStep) Name() string { return StepOutput }

// Do executes the step.
func (s *OutputStep) Do(_ context.Context, r *model.CrawlReport) error {
	_, err := s.writer.Write(r)
	return err
}

func (s *OutputStep) runsAfterCancel() {}
