package pipeline

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CityBaseInc/cityscrape/internal/config"
	"github.com/CityBaseInc/cityscrape/internal/database"
	"github.com/CityBaseInc/cityscrape/internal/fetcher"
	"github.com/CityBaseInc/cityscrape/internal/model"
	"github.com/CityBaseInc/cityscrape/internal/report"
)

// Env holds the collaborators shared by every job of a run.
type Env struct {
	// DB enables the session, streaming and persist steps. Nil disables them.
	DB *database.CrawlDB

	// Fetcher replaces the HTTP fetcher built from each config.
	Fetcher fetcher.Fetcher

	// Output receives the text, json and markdown reports. Nil skips them.
	Output io.Writer

	// Version is embedded in JSON reports.
	Version string

	Logger *slog.Logger
}

// Job is a ready-to-run pipeline together with the report it fills.
type Job struct {
	Pipeline *Pipeline
	Report   *model.CrawlReport
}

// Run executes the job's pipeline.
func (j *Job) Run(ctx context.Context) error {
	return j.Pipeline.Execute(ctx, j.Report)
}

// NewJob validates cfg and assembles its pipeline:
// session, crawl, words, persist, export, output. Steps whose collaborator
// is disabled are left out.
func NewJob(ctx context.Context, cfg *config.Config, env Env) (*Job, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	delim, err := cfg.Delimiter()
	if err != nil {
		return nil, err
	}

	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("site", cfg.Site)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db = env.DB
	}
	resume, err := LoadResume(ctx, cfg, env.DB)
	if err != nil {
		return nil, err
	}

	r := model.NewCrawlReport(uuid.NewString(), cfg.StartURL, cfg.Domain)
	r.Site = cfg.Site
	if resume != nil {
		r.ResumedFrom = resume.From
	}

	p := New(WithLogger(logger))
	crawlOpts := []CrawlStepOption{WithCrawlLogger(logger), WithResume(resume)}
	if env.Fetcher != nil {
		crawlOpts = append(crawlOpts, WithFetcher(env.Fetcher))
	}
	if db != nil {
		p.AddStep(NewSessionStep(db))
		crawlOpts = append(crawlOpts, WithSink(db.Sink(r.SessionID)))
	}
	p.AddStep(NewCrawlStep(cfg, crawlOpts...))
	if cfg.TopWords > 0 {
		p.AddStep(NewWordsStep(cfg.TopWords))
	}
	if db != nil {
		p.AddStep(NewPersistStep(db))
	}
	if cfg.HasFormat(config.FormatCSV) || cfg.HasFormat(config.FormatXLSX) {
		dir := cfg.OutputDir
		if dir == "" {
			dir = "."
		}
		exporter := report.NewExporter(report.ExportOptions{
			Dir:       dir,
			Site:      cfg.Site,
			Delimiter: delim,
		})
		p.AddStep(NewExportStep(exporter, cfg.OutputFormats, logger))
	}
	if w := Writers(cfg, env.Output, env.Version); w != nil {
		p.AddStep(NewOutputStep(w))
	}

	return &Job{Pipeline: p, Report: r}, nil
}

// Writers returns the stdout writers requested by cfg, nil when none is.
func Writers(cfg *config.Config, out io.Writer, version string) report.Writer {
	if out == nil {
		return nil
	}
	var writers []report.Writer
	for _, f := range cfg.OutputFormats {
		switch f {
		case config.FormatText:
			writers = append(writers, report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)))
		case config.FormatJSON:
			writers = append(writers, report.NewFullJSONWriter(out, version, report.WithPrettyPrint()))
		case config.FormatMarkdown:
			writers = append(writers, report.NewMarkdownWriter(out))
		}
	}
	switch len(writers) {
	case 0:
		return nil
	case 1:
		return writers[0]
	default:
		return report.NewMultiWriter(writers...)
	}
}
