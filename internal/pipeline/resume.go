package pipeline

import (
	"context"
	"fmt"

	"github.com/CityBaseInc/cityscrape/internal/config"
	"github.com/CityBaseInc/cityscrape/internal/database"
)

// Resume is frontier state carried over from an earlier run.
type Resume struct {
	// From names the source: a session id or the queue file path.
	From    string
	Visited []string
	Pending []string
}

// Empty reports whether r carries no URLs.
func (r *Resume) Empty() bool {
	return r == nil || (len(r.Visited) == 0 && len(r.Pending) == 0)
}

// LoadResume collects the resume state named by cfg. A stored session takes
// precedence over flat files. db may be nil when cfg.ResumeSession is empty.
func LoadResume(ctx context.Context, cfg *config.Config, db *database.CrawlDB) (*Resume, error) {
	if cfg.ResumeSession != "" {
		if db == nil {
			return nil, fmt.Errorf("resume %s: database is disabled", cfg.ResumeSession)
		}
		visited, pending, err := db.LoadFrontier(ctx, cfg.ResumeSession)
		if err != nil {
			return nil, fmt.Errorf("resume %s: %w", cfg.ResumeSession, err)
		}
		r := &Resume{From: cfg.ResumeSession, Visited: visited}
		for _, p := range pending {
			r.Pending = append(r.Pending, p.URL)
		}
		return r, nil
	}

	r := &Resume{}
	if cfg.VisitedFile != "" {
		urls, err := config.LoadURLList(cfg.VisitedFile)
		if err != nil {
			return nil, err
		}
		r.Visited = urls
	}
	if cfg.QueueFile != "" {
		urls, err := config.LoadURLList(cfg.QueueFile)
		if err != nil {
			return nil, err
		}
		r.Pending = urls
		r.From = cfg.QueueFile
	}
	if r.Empty() {
		return nil, nil
	}
	return r, nil
}
