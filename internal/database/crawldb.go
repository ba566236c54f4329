package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// FileName is the database file inside the database directory.
const FileName = "cityscrape.db"

// Frontier states stored in the frontier table.
const (
	StatePending = "pending"
	StateVisited = "visited"
)

// ErrSessionNotFound is returned when a session id is not in the database.
var ErrSessionNotFound = errors.New("session not found")

// CrawlDB is the SQLite store for crawl sessions.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string { return cdb.dbPath }

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		site TEXT NOT NULL DEFAULT '',
		start_url TEXT NOT NULL,
		domain TEXT NOT NULL,
		resumed_from TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		stop_reason TEXT NOT NULL DEFAULT '',
		diagnostics TEXT NOT NULL DEFAULT '{}',
		top_words TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	CREATE TABLE IF NOT EXISTS pages (
		session_id TEXT NOT NULL,
		page_id INTEGER NOT NULL,
		origin_page_id INTEGER NOT NULL,
		department TEXT,
		title TEXT,
		canonical_url TEXT NOT NULL,
		requested_url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		has_action_button INTEGER NOT NULL DEFAULT 0,
		has_nav_panel INTEGER NOT NULL DEFAULT 0,
		has_quick_links INTEGER NOT NULL DEFAULT 0,
		email_addresses TEXT NOT NULL DEFAULT '[]',
		pdf_links TEXT NOT NULL DEFAULT '[]',
		outside_domain_links TEXT NOT NULL DEFAULT '[]',
		unique_outside_domains TEXT NOT NULL DEFAULT '[]',
		body_words TEXT NOT NULL DEFAULT '[]',
		links_found INTEGER NOT NULL DEFAULT 0,
		links_queued INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT,
		PRIMARY KEY (session_id, page_id)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(canonical_url);

	CREATE TABLE IF NOT EXISTS dead_links (
		session_id TEXT NOT NULL,
		requested_url TEXT NOT NULL,
		origin_page_id INTEGER NOT NULL,
		status_code INTEGER,
		reason TEXT,
		timeout INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, requested_url)
	);

	CREATE TABLE IF NOT EXISTS failed_parses (
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		page_id INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (session_id, url)
	);

	CREATE TABLE IF NOT EXISTS frontier (
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		state TEXT NOT NULL,
		origin_page_id INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_frontier_state ON frontier(session_id, state);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// BeginSession records the start of a crawl. Calling it again for the same
// id keeps the original start time.
func (cdb *CrawlDB) BeginSession(ctx context.Context, report *model.CrawlReport, startedAt time.Time) error {
	query := `
	INSERT INTO sessions (id, site, start_url, domain, resumed_from, started_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`
	_, err := cdb.db.ExecContext(ctx, query,
		report.SessionID,
		report.Site,
		report.StartURL,
		report.Domain,
		report.ResumedFrom,
		formatTimestamp(startedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to begin session: %w", err)
	}
	return nil
}

// SaveReport stores a finished report: the session row, every record and
// the frontier state. Records already written through a Sink are replaced,
// so SaveReport can follow a streaming crawl.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.CrawlReport) (err error) {
	diag, err := json.Marshal(report.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to serialize diagnostics: %w", err)
	}
	words, err := marshalJSON(report.TopWords)
	if err != nil {
		return fmt.Errorf("failed to serialize top words: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
	INSERT INTO sessions (id, site, start_url, domain, resumed_from, started_at, finished_at, stop_reason, diagnostics, top_words)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		site = excluded.site,
		resumed_from = excluded.resumed_from,
		finished_at = excluded.finished_at,
		stop_reason = excluded.stop_reason,
		diagnostics = excluded.diagnostics,
		top_words = excluded.top_words
	`
	d := report.Diagnostics
	if _, err = tx.ExecContext(ctx, query,
		report.SessionID,
		report.Site,
		report.StartURL,
		report.Domain,
		report.ResumedFrom,
		formatTimestamp(d.StartedAt),
		formatTimestamp(d.FinishedAt),
		d.StopReason,
		string(diag),
		words,
	); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for i := range report.Pages {
		if err = insertPage(ctx, tx, report.SessionID, &report.Pages[i]); err != nil {
			return err
		}
	}
	for _, dl := range report.DeadLinks {
		if err = insertDeadLink(ctx, tx, report.SessionID, dl); err != nil {
			return err
		}
	}
	for _, fp := range report.FailedParses {
		if err = insertFailedParse(ctx, tx, report.SessionID, fp); err != nil {
			return err
		}
	}
	if err = saveFrontier(ctx, tx, report.SessionID, report.Visited, report.Pending); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPage(ctx context.Context, ex execer, sessionID string, p *model.PageRecord) error {
	lists := make([]string, 5)
	for i, v := range [][]string{p.EmailAddresses, p.PDFLinks, p.OutsideDomainLinks, p.UniqueOutsideDomains, p.BodyWords} {
		s, err := marshalJSON(v)
		if err != nil {
			return fmt.Errorf("failed to serialize page %d: %w", p.PageID, err)
		}
		lists[i] = s
	}

	query := `
	INSERT OR REPLACE INTO pages (
		session_id, page_id, origin_page_id, department, title, canonical_url, requested_url,
		status_code, content_type, has_action_button, has_nav_panel, has_quick_links,
		email_addresses, pdf_links, outside_domain_links, unique_outside_domains, body_words,
		links_found, links_queued, content_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := ex.ExecContext(ctx, query,
		sessionID, p.PageID, p.OriginPageID, p.Department, p.Title, p.CanonicalURL, p.RequestedURL,
		p.StatusCode, p.ContentType, p.HasActionButton, p.HasNavPanel, p.HasQuickLinks,
		lists[0], lists[1], lists[2], lists[3], lists[4],
		p.LinksFound, p.LinksQueued, p.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert page %d: %w", p.PageID, err)
	}
	return nil
}

func insertDeadLink(ctx context.Context, ex execer, sessionID string, d model.DeadLink) error {
	query := `
	INSERT OR REPLACE INTO dead_links (session_id, requested_url, origin_page_id, status_code, reason, timeout)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := ex.ExecContext(ctx, query, sessionID, d.RequestedURL, d.OriginPageID, d.StatusCode, d.Reason, d.Timeout); err != nil {
		return fmt.Errorf("failed to insert dead link: %w", err)
	}
	return nil
}

func insertFailedParse(ctx context.Context, ex execer, sessionID string, f model.FailedParse) error {
	query := `
	INSERT OR REPLACE INTO failed_parses (session_id, url, page_id, error)
	VALUES (?, ?, ?, ?)
	`
	if _, err := ex.ExecContext(ctx, query, sessionID, f.URL, f.PageID, f.Error); err != nil {
		return fmt.Errorf("failed to insert failed parse: %w", err)
	}
	return nil
}

func saveFrontier(ctx context.Context, ex execer, sessionID string, visited []string, pending []model.PendingURL) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM frontier WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear frontier: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO frontier (session_id, url, state, origin_page_id, position)
	VALUES (?, ?, ?, ?, ?)
	`
	for i, u := range visited {
		if _, err := ex.ExecContext(ctx, query, sessionID, u, StateVisited, 0, i); err != nil {
			return fmt.Errorf("failed to save frontier: %w", err)
		}
	}
	for i, p := range pending {
		if _, err := ex.ExecContext(ctx, query, sessionID, p.URL, StatePending, p.OriginPageID, i); err != nil {
			return fmt.Errorf("failed to save frontier: %w", err)
		}
	}
	return nil
}

// LoadFrontier returns the visited and pending URLs stored for a session,
// pending in queue order.
func (cdb *CrawlDB) LoadFrontier(ctx context.Context, sessionID string) (visited []string, pending []model.PendingURL, err error) {
	if _, err := cdb.sessionExists(ctx, sessionID); err != nil {
		return nil, nil, err
	}

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, state, origin_page_id FROM frontier
	WHERE session_id = ?
	ORDER BY state, position
	`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load frontier: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u, state string
		var origin int
		if err := rows.Scan(&u, &state, &origin); err != nil {
			return nil, nil, fmt.Errorf("failed to scan frontier: %w", err)
		}
		if state == StateVisited {
			visited = append(visited, u)
		} else {
			pending = append(pending, model.PendingURL{OriginPageID: origin, URL: u})
		}
	}
	return visited, pending, rows.Err()
}

func (cdb *CrawlDB) sessionExists(ctx context.Context, sessionID string) (bool, error) {
	var n int
	if err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up session: %w", err)
	}
	if n == 0 {
		return false, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return true, nil
}

// SessionSummary describes a stored session without its records.
type SessionSummary struct {
	ID          string
	Site        string
	StartURL    string
	Domain      string
	ResumedFrom string
	StartedAt   time.Time
	FinishedAt  time.Time
	StopReason  string
	Diagnostics model.Diagnostics
}

// ListSessions returns all sessions, newest first.
func (cdb *CrawlDB) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, site, start_url, domain, resumed_from, started_at, finished_at, stop_reason, diagnostics
	FROM sessions
	ORDER BY started_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSession scans the session columns followed by any extra columns.
func scanSession(row scanner, extra ...any) (SessionSummary, error) {
	var s SessionSummary
	var started, finished, diag string
	dest := append([]any{&s.ID, &s.Site, &s.StartURL, &s.Domain, &s.ResumedFrom, &started, &finished, &s.StopReason, &diag}, extra...)
	if err := row.Scan(dest...); err != nil {
		return s, err
	}
	s.StartedAt = parseTimestamp(started)
	s.FinishedAt = parseTimestamp(finished)
	if diag != "" {
		if err := json.Unmarshal([]byte(diag), &s.Diagnostics); err != nil {
			return s, fmt.Errorf("failed to parse diagnostics of %s: %w", s.ID, err)
		}
	}
	return s, nil
}

// LoadReport rebuilds the full report of a stored session.
func (cdb *CrawlDB) LoadReport(ctx context.Context, sessionID string) (*model.CrawlReport, error) {
	row := cdb.db.QueryRowContext(ctx, `
	SELECT id, site, start_url, domain, resumed_from, started_at, finished_at, stop_reason, diagnostics, top_words
	FROM sessions WHERE id = ?
	`, sessionID)

	var words string
	s, err := scanSession(row, &words)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	report := model.NewCrawlReport(s.ID, s.StartURL, s.Domain)
	report.Site = s.Site
	report.ResumedFrom = s.ResumedFrom
	report.Diagnostics = s.Diagnostics
	if words != "" && words != "null" {
		if err := json.Unmarshal([]byte(words), &report.TopWords); err != nil {
			return nil, fmt.Errorf("failed to parse top words: %w", err)
		}
	}

	if report.Pages, err = cdb.loadPages(ctx, sessionID); err != nil {
		return nil, err
	}
	if report.DeadLinks, err = cdb.loadDeadLinks(ctx, sessionID); err != nil {
		return nil, err
	}
	if report.FailedParses, err = cdb.loadFailedParses(ctx, sessionID); err != nil {
		return nil, err
	}
	if report.Visited, report.Pending, err = cdb.LoadFrontier(ctx, sessionID); err != nil {
		return nil, err
	}
	return report, nil
}

func (cdb *CrawlDB) loadPages(ctx context.Context, sessionID string) ([]model.PageRecord, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT page_id, origin_page_id, department, title, canonical_url, requested_url,
		status_code, content_type, has_action_button, has_nav_panel, has_quick_links,
		email_addresses, pdf_links, outside_domain_links, unique_outside_domains, body_words,
		links_found, links_queued, content_hash
	FROM pages WHERE session_id = ?
	ORDER BY page_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	pages := make([]model.PageRecord, 0)
	for rows.Next() {
		var p model.PageRecord
		var dept, title, contentType, hash sql.NullString
		var lists [5]string
		if err := rows.Scan(&p.PageID, &p.OriginPageID, &dept, &title, &p.CanonicalURL, &p.RequestedURL,
			&p.StatusCode, &contentType, &p.HasActionButton, &p.HasNavPanel, &p.HasQuickLinks,
			&lists[0], &lists[1], &lists[2], &lists[3], &lists[4],
			&p.LinksFound, &p.LinksQueued, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Department, p.Title, p.ContentType, p.ContentHash = dept.String, title.String, contentType.String, hash.String

		targets := []*[]string{&p.EmailAddresses, &p.PDFLinks, &p.OutsideDomainLinks, &p.UniqueOutsideDomains, &p.BodyWords}
		for i, dst := range targets {
			if err := json.Unmarshal([]byte(lists[i]), dst); err != nil {
				return nil, fmt.Errorf("failed to parse page %d: %w", p.PageID, err)
			}
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (cdb *CrawlDB) loadDeadLinks(ctx context.Context, sessionID string) ([]model.DeadLink, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT origin_page_id, requested_url, status_code, reason, timeout
	FROM dead_links WHERE session_id = ?
	ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dead links: %w", err)
	}
	defer rows.Close()

	out := make([]model.DeadLink, 0)
	for rows.Next() {
		var d model.DeadLink
		var reason sql.NullString
		if err := rows.Scan(&d.OriginPageID, &d.RequestedURL, &d.StatusCode, &reason, &d.Timeout); err != nil {
			return nil, fmt.Errorf("failed to scan dead link: %w", err)
		}
		d.Reason = reason.String
		out = append(out, d)
	}
	return out, rows.Err()
}

func (cdb *CrawlDB) loadFailedParses(ctx context.Context, sessionID string) ([]model.FailedParse, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT page_id, url, error
	FROM failed_parses WHERE session_id = ?
	ORDER BY rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load failed parses: %w", err)
	}
	defer rows.Close()

	out := make([]model.FailedParse, 0)
	for rows.Next() {
		var f model.FailedParse
		var msg sql.NullString
		if err := rows.Scan(&f.PageID, &f.URL, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan failed parse: %w", err)
		}
		f.Error = msg.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and all its rows.
func (cdb *CrawlDB) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := cdb.sessionExists(ctx, sessionID); err != nil {
		return err
	}
	for _, table := range []string{"pages", "dead_links", "failed_parses", "frontier"} {
		if _, err := cdb.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil { //nolint:gosec // table names are constants
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// marshalJSON encodes v, writing "[]" for nil slices.
func marshalJSON[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// timestampLayout has a fixed-width fraction so stored timestamps sort as
// text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats are the formats SQLite or older rows may hold, most
// specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
