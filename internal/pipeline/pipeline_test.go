package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, report *model.CrawlReport) error
	callCount int
}

func (m *mockStep) Do(ctx context.Context, report *model.CrawlReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, report)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

// finalStep is a mockStep that runs after cancellation.
type finalStep struct {
	mockStep
}

func (f *finalStep) runsAfterCancel() {}

func newReport() *model.CrawlReport {
	return model.NewCrawlReport("session-1", "https://example.org/", "example.org")
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to default to false")
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddSteps(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	names := p.StepNames()
	want := []string{"first", "second", "third"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.CrawlReport) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New()
		p.AddSteps(step("a"), step("b"), step("c"))
		if err := p.Execute(context.Background(), newReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 3 || order[0] != "a" || order[2] != "c" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("steps share the report", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "fill", doFunc: func(_ context.Context, r *model.CrawlReport) error {
			r.Pages = append(r.Pages, model.PageRecord{PageID: 1})
			return nil
		}})
		count := -1
		p.AddStep(&mockStep{name: "read", doFunc: func(_ context.Context, r *model.CrawlReport) error {
			count = len(r.Pages)
			return nil
		}})

		if err := p.Execute(context.Background(), newReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 1 {
			t.Errorf("expected second step to see 1 page, got %d", count)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		failing := &mockStep{name: "fail", doFunc: func(context.Context, *model.CrawlReport) error { return boom }}
		after := &mockStep{name: "after"}

		p := New()
		p.AddSteps(failing, after)
		if err := p.Execute(context.Background(), newReport()); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected later step to be skipped")
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		failing := &mockStep{name: "fail", doFunc: func(context.Context, *model.CrawlReport) error { return boom }}
		after := &mockStep{name: "after"}

		p := New(WithContinueOnError(true))
		p.AddSteps(failing, after)
		if err := p.Execute(context.Background(), newReport()); !errors.Is(err, boom) {
			t.Errorf("expected first error to be returned, got %v", err)
		}
		if after.callCount != 1 {
			t.Error("expected later step to run")
		}
	})

	t.Run("runs only finalizers after cancel", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		crawl := &mockStep{name: "crawl", doFunc: func(context.Context, *model.CrawlReport) error {
			cancel()
			return nil
		}}
		skipped := &mockStep{name: "skipped"}
		var finalCtxErr error
		final := &finalStep{mockStep{name: "persist", doFunc: func(ctx context.Context, _ *model.CrawlReport) error {
			finalCtxErr = ctx.Err()
			return nil
		}}}

		p := New()
		p.AddSteps(crawl, skipped, final)
		err := p.Execute(ctx, newReport())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if skipped.callCount != 0 {
			t.Error("expected non-finalizing step to be skipped")
		}
		if final.callCount != 1 {
			t.Error("expected finalizing step to run")
		}
		if finalCtxErr != nil {
			t.Errorf("expected finalizer context without cancel, got %v", finalCtxErr)
		}
	})
}
