package database

import (
	"context"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// SessionSink writes records of one session as the crawler produces them,
// so a crash or kill loses at most the frontier state.
type SessionSink struct {
	db        *CrawlDB
	sessionID string
}

// Sink returns a SessionSink for sessionID. BeginSession should be called
// first so the session row exists.
func (cdb *CrawlDB) Sink(sessionID string) *SessionSink {
	return &SessionSink{db: cdb, sessionID: sessionID}
}

// OnPage stores a page record.
func (s *SessionSink) OnPage(ctx context.Context, rec model.PageRecord) error {
	return insertPage(ctx, s.db.db, s.sessionID, &rec)
}

// OnDeadLink stores a dead link.
func (s *SessionSink) OnDeadLink(ctx context.Context, d model.DeadLink) error {
	return insertDeadLink(ctx, s.db.db, s.sessionID, d)
}

// OnFailedParse stores a failed parse.
func (s *SessionSink) OnFailedParse(ctx context.Context, f model.FailedParse) error {
	return insertFailedParse(ctx, s.db.db, s.sessionID, f)
}
