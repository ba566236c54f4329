// Package frontier holds the crawl queue and the visited set.
//
// A Frontier is safe for concurrent use. Every key it stores is the
// urlutil.Canonicalize form of a URL, and each key is in at most one of the
// pending, in-flight and visited sets at any time.
package frontier

import (
	"container/list"
	"sync"

	"github.com/CityBaseInc/cityscrape/internal/urlutil"
)

// Entry is a queued URL together with the page it was discovered on.
// OriginPageID is 0 for the seed and for URLs loaded from a previous run.
type Entry struct {
	OriginPageID int
	URL          string
}

// Stats is a point-in-time view of the frontier counters.
type Stats struct {
	// Pending is the number of URLs waiting to be dequeued.
	Pending int
	// InFlight is the number of URLs dequeued but not yet marked visited.
	InFlight int
	// Visited is the size of the visited set.
	Visited int
	// Enqueued counts successful Enqueue calls.
	Enqueued int
	// Duplicates counts Enqueue calls rejected as already known.
	Duplicates int
}

type queued struct {
	entry Entry
	key   string
}

// Frontier is a FIFO queue with O(1) membership checks.
type Frontier struct {
	mu         sync.Mutex
	queue      *list.List
	pending    map[string]struct{}
	inflight   map[string]struct{}
	visited    map[string]struct{}
	enqueued   int
	duplicates int
}

// New creates an empty Frontier.
func New() *Frontier {
	return &Frontier{
		queue:    list.New(),
		pending:  make(map[string]struct{}),
		inflight: make(map[string]struct{}),
		visited:  make(map[string]struct{}),
	}
}

// Enqueue adds url unless its canonical form is already pending, in flight or
// visited. It reports whether the URL was added.
func (f *Frontier) Enqueue(originPageID int, url string) bool {
	key := urlutil.Canonicalize(url)
	if key == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.knownLocked(key) {
		f.duplicates++
		return false
	}
	f.queue.PushBack(queued{entry: Entry{OriginPageID: originPageID, URL: url}, key: key})
	f.pending[key] = struct{}{}
	f.enqueued++
	return true
}

// Dequeue pops the oldest pending entry and moves it to the in-flight set.
// It returns false when nothing is pending.
func (f *Frontier) Dequeue() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		elem := f.queue.Front()
		if elem == nil {
			return Entry{}, false
		}
		item, _ := f.queue.Remove(elem).(queued)
		if _, ok := f.pending[item.key]; !ok {
			// Claimed as a redirect target while it was still queued.
			continue
		}
		delete(f.pending, item.key)
		f.inflight[item.key] = struct{}{}
		return item.entry, true
	}
}

// Release returns an in-flight entry to the front of the queue. It is used
// when processing was interrupted before an outcome was known. Entries that
// are not in flight are ignored.
func (f *Frontier) Release(e Entry) {
	key := urlutil.Canonicalize(e.URL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.inflight[key]; !ok {
		return
	}
	delete(f.inflight, key)
	f.pending[key] = struct{}{}
	f.queue.PushFront(queued{entry: e, key: key})
}

// MarkVisited records url as visited. It is idempotent.
func (f *Frontier) MarkVisited(url string) {
	key := urlutil.Canonicalize(url)
	if key == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.markLocked(key)
}

// Claim atomically checks whether url has been visited and, if not, marks it
// visited. It reports whether the caller now owns the URL. Claim is how a
// worker deduplicates on the post-redirect URL.
func (f *Frontier) Claim(url string) bool {
	key := urlutil.Canonicalize(url)
	if key == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[key]; ok {
		return false
	}
	f.markLocked(key)
	return true
}

// IsVisited reports whether url has been visited.
func (f *Frontier) IsVisited(url string) bool {
	key := urlutil.Canonicalize(url)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[key]
	return ok
}

// Known reports whether url is pending, in flight or visited.
func (f *Frontier) Known(url string) bool {
	key := urlutil.Canonicalize(url)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.knownLocked(key)
}

// Len returns the number of pending URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// VisitedCount returns the size of the visited set.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Load seeds the frontier from a previous run. Visited keys are inserted
// first, so a URL present in both lists stays visited and is not queued.
// It returns the number of pending entries actually queued.
func (f *Frontier) Load(visited []string, pending []Entry) int {
	f.mu.Lock()
	for _, u := range visited {
		if key := urlutil.Canonicalize(u); key != "" {
			f.visited[key] = struct{}{}
		}
	}
	f.mu.Unlock()

	n := 0
	for _, e := range pending {
		if f.Enqueue(e.OriginPageID, e.URL) {
			n++
		}
	}
	return n
}

// Pending returns the pending entries in queue order.
func (f *Frontier) Pending() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Entry, 0, len(f.pending))
	for elem := f.queue.Front(); elem != nil; elem = elem.Next() {
		item, _ := elem.Value.(queued)
		if _, ok := f.pending[item.key]; ok {
			out = append(out, item.entry)
		}
	}
	return out
}

// Visited returns the canonical visited keys in no particular order.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.visited))
	for k := range f.visited {
		out = append(out, k)
	}
	return out
}

// Stats returns the current counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Pending:    len(f.pending),
		InFlight:   len(f.inflight),
		Visited:    len(f.visited),
		Enqueued:   f.enqueued,
		Duplicates: f.duplicates,
	}
}

func (f *Frontier) knownLocked(key string) bool {
	if _, ok := f.visited[key]; ok {
		return true
	}
	if _, ok := f.pending[key]; ok {
		return true
	}
	_, ok := f.inflight[key]
	return ok
}

func (f *Frontier) markLocked(key string) {
	delete(f.pending, key)
	delete(f.inflight, key)
	f.visited[key] = struct{}{}
}
