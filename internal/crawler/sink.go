package crawler

import (
	"context"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// Sink receives records as they are produced. Methods are called from worker
// goroutines and must be safe for concurrent use. A returned error is logged
// and does not stop the crawl.
type Sink interface {
	OnPage(ctx context.Context, rec model.PageRecord) error
	OnDeadLink(ctx context.Context, d model.DeadLink) error
	OnFailedParse(ctx context.Context, f model.FailedParse) error
}

// MultiSink fans records out to several sinks.
type MultiSink []Sink

// OnPage implements Sink.
func (m MultiSink) OnPage(ctx context.Context, rec model.PageRecord) error {
	var first error
	for _, s := range m {
		if err := s.OnPage(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OnDeadLink implements Sink.
func (m MultiSink) OnDeadLink(ctx context.Context, d model.DeadLink) error {
	var first error
	for _, s := range m {
		if err := s.OnDeadLink(ctx, d); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OnFailedParse implements Sink.
func (m MultiSink) OnFailedParse(ctx context.Context, f model.FailedParse) error {
	var first error
	for _, s := range m {
		if err := s.OnFailedParse(ctx, f); err != nil && first == nil {
			first = err
		}
	}
	return first
}
