package frontier

import (
	"fmt"
	"sync"
	"testing"
)

func TestFrontierFIFO(t *testing.T) {
	t.Parallel()

	f := New()
	for i, u := range []string{"http://example.org/a", "http://example.org/b", "http://example.org/c"} {
		if !f.Enqueue(i, u) {
			t.Fatalf("expected %s to be enqueued", u)
		}
	}

	for i, want := range []string{"http://example.org/a", "http://example.org/b", "http://example.org/c"} {
		e, ok := f.Dequeue()
		if !ok {
			t.Fatalf("expected entry %d", i)
		}
		if e.URL != want || e.OriginPageID != i {
			t.Errorf("expected (%d, %s), got (%d, %s)", i, want, e.OriginPageID, e.URL)
		}
	}

	if _, ok := f.Dequeue(); ok {
		t.Error("expected empty frontier")
	}
}

func TestFrontierDedup(t *testing.T) {
	t.Parallel()

	t.Run("pending duplicates are rejected", func(t *testing.T) {
		t.Parallel()
		f := New()
		if !f.Enqueue(1, "http://example.org/a/") {
			t.Fatal("expected first enqueue to succeed")
		}
		if f.Enqueue(2, "HTTP://EXAMPLE.ORG/a#x") {
			t.Error("expected canonical duplicate to be rejected")
		}
		if got := f.Len(); got != 1 {
			t.Errorf("expected 1 pending, got %d", got)
		}
		if got := f.Stats().Duplicates; got != 1 {
			t.Errorf("expected 1 duplicate, got %d", got)
		}
	})

	t.Run("in-flight urls are rejected", func(t *testing.T) {
		t.Parallel()
		f := New()
		f.Enqueue(0, "http://example.org/a")
		if _, ok := f.Dequeue(); !ok {
			t.Fatal("expected entry")
		}
		if f.Enqueue(1, "http://example.org/a") {
			t.Error("expected in-flight url to be rejected")
		}
	})

	t.Run("visited urls are never re-enqueued", func(t *testing.T) {
		t.Parallel()
		f := New()
		f.MarkVisited("http://example.org/a")
		f.MarkVisited("http://example.org/a")
		if f.Enqueue(1, "http://example.org/a/") {
			t.Error("expected visited url to be rejected")
		}
		if got := f.VisitedCount(); got != 1 {
			t.Errorf("expected 1 visited, got %d", got)
		}
	})
}

func TestFrontierClaim(t *testing.T) {
	t.Parallel()

	f := New()
	f.Enqueue(0, "http://example.org/a")
	f.Enqueue(0, "http://example.org/b")

	e, _ := f.Dequeue()
	if e.URL != "http://example.org/a" {
		t.Fatalf("expected /a first, got %s", e.URL)
	}

	// /a redirected to /b, which is still queued.
	if !f.Claim("http://example.org/b") {
		t.Fatal("expected first claim of /b to succeed")
	}
	f.MarkVisited(e.URL)

	if f.Claim("http://example.org/b/") {
		t.Error("expected second claim of /b to fail")
	}
	if _, ok := f.Dequeue(); ok {
		t.Error("expected claimed /b to be skipped by Dequeue")
	}
	if got := len(f.Pending()); got != 0 {
		t.Errorf("expected no pending entries, got %d", got)
	}

	s := f.Stats()
	if s.Pending != 0 || s.InFlight != 0 || s.Visited != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestFrontierRelease(t *testing.T) {
	t.Parallel()

	f := New()
	f.Enqueue(0, "http://example.org/a")
	f.Enqueue(0, "http://example.org/b")

	e, _ := f.Dequeue()
	f.Release(e)
	// A second release of the same entry is a no-op.
	f.Release(e)

	if got := f.Len(); got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}
	next, _ := f.Dequeue()
	if next.URL != "http://example.org/a" {
		t.Errorf("expected released entry first, got %s", next.URL)
	}
}

func TestFrontierLoad(t *testing.T) {
	t.Parallel()

	f := New()
	n := f.Load(
		[]string{"http://example.org/done", ""},
		[]Entry{
			{URL: "http://example.org/done/"},
			{URL: "http://example.org/next"},
			{URL: "http://example.org/next#dup"},
		},
	)
	if n != 1 {
		t.Fatalf("expected 1 queued entry, got %d", n)
	}
	if !f.IsVisited("http://example.org/done") {
		t.Error("expected loaded url to be visited")
	}
	pending := f.Pending()
	if len(pending) != 1 || pending[0].URL != "http://example.org/next" {
		t.Errorf("unexpected pending %+v", pending)
	}
}

// TestFrontierConcurrent checks that each canonical URL is handed out at most
// once when many goroutines enqueue overlapping link sets.
func TestFrontierConcurrent(t *testing.T) {
	t.Parallel()

	const (
		workers = 16
		urls    = 200
	)

	f := New()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]int)
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < urls; i++ {
				f.Enqueue(w, fmt.Sprintf("http://example.org/p%d", i))
				if e, ok := f.Dequeue(); ok {
					mu.Lock()
					seen[e.URL]++
					mu.Unlock()
					f.MarkVisited(e.URL)
				}
			}
		}(w)
	}
	wg.Wait()

	for {
		e, ok := f.Dequeue()
		if !ok {
			break
		}
		seen[e.URL]++
		f.MarkVisited(e.URL)
	}

	if len(seen) != urls {
		t.Errorf("expected %d distinct urls, got %d", urls, len(seen))
	}
	for u, n := range seen {
		if n != 1 {
			t.Errorf("%s dequeued %d times", u, n)
		}
	}
	if got := f.VisitedCount(); got != urls {
		t.Errorf("expected %d visited, got %d", urls, got)
	}
}
