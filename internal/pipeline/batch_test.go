package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// stubFactory builds one-step jobs that record the site as a page title.
func stubFactory(fail map[string]error, running, peak *atomic.Int32) JobFactory {
	return func(_ context.Context, site string) (*Job, error) {
		if err, ok := fail[site]; ok {
			return nil, err
		}
		p := New()
		p.AddStep(&mockStep{name: "crawl", doFunc: func(_ context.Context, r *model.CrawlReport) error {
			if running != nil {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
			}
			r.Pages = append(r.Pages, model.PageRecord{PageID: 1, Title: site})
			r.Diagnostics.StopReason = model.StopFrontierEmpty
			return nil
		}})
		r := model.NewCrawlReport("id-"+site, "https://"+site+".example.org/", site+".example.org")
		r.Site = site
		return &Job{Pipeline: p, Report: r}, nil
	}
}

func TestBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("returns results in input order", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(stubFactory(nil, nil, nil), WithConcurrency(3))
		sites := []string{"chicago", "indianapolis", "cook-county"}
		results, err := bp.ProcessBatch(context.Background(), sites)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != len(sites) {
			t.Fatalf("expected %d results, got %d", len(sites), len(results))
		}
		for i, res := range results {
			if res.Site != sites[i] {
				t.Errorf("result %d site = %s, want %s", i, res.Site, sites[i])
			}
			if res.Err != nil {
				t.Errorf("unexpected error for %s: %v", res.Site, res.Err)
			}
			if res.Report == nil || res.Report.Pages[0].Title != sites[i] {
				t.Errorf("unexpected report for %s", res.Site)
			}
		}
	})

	t.Run("failing site does not stop others", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("unknown site")
		bp := NewBatchProcessor(stubFactory(map[string]error{"bad": boom}, nil, nil))
		results, err := bp.ProcessBatch(context.Background(), []string{"chicago", "bad", "indianapolis"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(results[1].Err, boom) {
			t.Errorf("expected setup error for bad site, got %v", results[1].Err)
		}
		if results[0].Err != nil || results[2].Err != nil {
			t.Error("expected other sites to succeed")
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		bp := NewBatchProcessor(stubFactory(nil, &running, &peak), WithConcurrency(2))
		if _, err := bp.ProcessBatch(context.Background(), []string{"a", "b", "c", "d", "e"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent sites, saw %d", peak.Load())
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(stubFactory(nil, nil, nil))
		results, err := bp.ProcessBatch(ctx, []string{"chicago", "indianapolis"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		for _, res := range results {
			if !errors.Is(res.Err, context.Canceled) {
				t.Errorf("expected canceled result for %s, got %v", res.Site, res.Err)
			}
		}
	})

	t.Run("ignores invalid concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(stubFactory(nil, nil, nil), WithConcurrency(0))
		if bp.concurrency != 2 {
			t.Errorf("expected default concurrency 2, got %d", bp.concurrency)
		}
	})
}
