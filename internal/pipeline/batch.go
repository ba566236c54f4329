package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// JobFactory builds the job for one site preset.
type JobFactory func(ctx context.Context, site string) (*Job, error)

// Result is the outcome of one site in a batch.
type Result struct {
	Site   string
	Report *model.CrawlReport
	Err    error
}

// BatchProcessor crawls several site presets concurrently.
type BatchProcessor struct {
	factory     JobFactory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the number of sites crawled at once. Values below 1
// are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. The default concurrency is 2;
// each site already runs its own worker pool.
func NewBatchProcessor(factory JobFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{factory: factory, concurrency: 2}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs every site and returns one Result per site, in input
// order. A failing site does not stop the others. The error is non-nil only
// when ctx was canceled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sites []string) ([]Result, error) {
	bp.logger.Info("starting batch",
		"sites", len(sites),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	results := make([]Result, len(sites))
	g := new(errgroup.Group)
	g.SetLimit(bp.concurrency)

	for i, site := range sites {
		g.Go(func() error {
			results[i] = bp.run(ctx, site, i, len(sites))
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // run never returns errors to the group

	bp.logger.Info("batch complete",
		"sites", len(sites),
		"elapsed", time.Since(start),
	)
	return results, ctx.Err()
}

func (bp *BatchProcessor) run(ctx context.Context, site string, index, total int) Result {
	res := Result{Site: site}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	bp.logger.Info("crawling site", "site", site, "index", index+1, "total", total)

	job, err := bp.factory(ctx, site)
	if err != nil {
		bp.logger.Warn("site setup failed", "site", site, "error", err)
		res.Err = err
		return res
	}
	res.Report = job.Report

	if err := job.Run(ctx); err != nil {
		bp.logger.Warn("site failed", "site", site, "error", err)
		res.Err = err
		return res
	}

	bp.logger.Info("site completed",
		"site", site,
		"pages", len(job.Report.Pages),
		"stop", job.Report.Diagnostics.StopReason,
	)
	return res
}
