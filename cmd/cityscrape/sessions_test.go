package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CityBaseInc/cityscrape/internal/database"
	"github.com/CityBaseInc/cityscrape/internal/model"
	"github.com/CityBaseInc/cityscrape/internal/report"
)

// crawlSession crawls the test site into a fresh database and returns the
// database directory and the session id.
func crawlSession(t *testing.T) (string, string) {
	t.Helper()

	srv := newCitySite(t)
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	cfgPath := writeConfigFile(t, dir, srv.URL+"/")

	stdout, stderr, code := runCLI(t, "crawl", "-c", cfgPath, "-s", "testcity", "-f", "json", "--db-dir", dbDir)
	if code != exitOK {
		t.Fatalf("crawl failed with exit code %d: %s", code, stderr)
	}
	var got report.JSONReport
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout is not a JSON report: %v", err)
	}
	return dbDir, got.Report.SessionID
}

func TestSessionsCmd(t *testing.T) {
	t.Parallel()

	t.Run("no database", func(t *testing.T) {
		t.Parallel()
		stdout, _, code := runCLI(t, "sessions", "--db-dir", t.TempDir())
		if code != exitOK {
			t.Fatalf("expected exit code 0, got %d", code)
		}
		if !strings.Contains(stdout, "No stored sessions found.") {
			t.Errorf("expected empty list message, got %q", stdout)
		}
	})

	t.Run("show on missing database", func(t *testing.T) {
		t.Parallel()
		_, stderr, code := runCLI(t, "sessions", "show", "abc", "--db-dir", t.TempDir())
		if code != exitError {
			t.Errorf("expected exit code %d, got %d", exitError, code)
		}
		if !strings.Contains(stderr, "no database found") {
			t.Errorf("expected no database error, got %q", stderr)
		}
	})

	t.Run("list show delete", func(t *testing.T) {
		t.Parallel()
		dbDir, id := crawlSession(t)

		stdout, _, code := runCLI(t, "sessions", "--db-dir", dbDir)
		if code != exitOK {
			t.Fatalf("list: exit code %d", code)
		}
		if !strings.Contains(stdout, "Stored sessions (1)") || !strings.Contains(stdout, id) {
			t.Errorf("expected session %s in list, got %q", id, stdout)
		}
		if !strings.Contains(stdout, "testcity") || !strings.Contains(stdout, "frontier_empty") {
			t.Errorf("expected site and stop reason in list, got %q", stdout)
		}

		stdout, _, code = runCLI(t, "sessions", "show", id, "-f", "json", "--db-dir", dbDir)
		if code != exitOK {
			t.Fatalf("show: exit code %d", code)
		}
		var got report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &got); err != nil {
			t.Fatalf("show output is not a JSON report: %v", err)
		}
		if len(got.Report.Pages) != 3 || len(got.Report.DeadLinks) != 1 {
			t.Errorf("expected 3 pages and 1 dead link, got %d and %d", len(got.Report.Pages), len(got.Report.DeadLinks))
		}

		stdout, _, code = runCLI(t, "sessions", "show", id, "-f", "markdown", "--db-dir", dbDir)
		if code != exitOK || !strings.Contains(stdout, "# Crawl Report: testcity") {
			t.Errorf("expected markdown report, got exit %d output %q", code, stdout)
		}

		_, _, code = runCLI(t, "sessions", "show", id, "-f", "xlsx", "--db-dir", dbDir)
		if code != exitConfig {
			t.Errorf("expected exit code %d for xlsx, got %d", exitConfig, code)
		}

		stdout, _, code = runCLI(t, "sessions", "delete", id, "--db-dir", dbDir)
		if code != exitOK || !strings.Contains(stdout, "Deleted session "+id) {
			t.Fatalf("delete: exit code %d output %q", code, stdout)
		}

		_, _, code = runCLI(t, "sessions", "show", id, "--db-dir", dbDir)
		if code != exitConfig {
			t.Errorf("expected exit code %d for deleted session, got %d", exitConfig, code)
		}
		_, _, code = runCLI(t, "sessions", "delete", id, "--db-dir", dbDir)
		if code != exitConfig {
			t.Errorf("expected exit code %d for second delete, got %d", exitConfig, code)
		}
	})
}

func TestWriteSessionList(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	sessions := []database.SessionSummary{
		{
			ID:         "11111111-2222-3333-4444-555555555555",
			Site:       "chicago-finance-department-archive",
			Domain:     "chicago.gov",
			StartedAt:  started,
			StopReason: model.StopBudget,
			Diagnostics: model.Diagnostics{
				PagesScraped:   1200,
				DeadLinks:      4,
				RemainingQueue: 96,
			},
		},
		{ID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", Domain: "indy.gov", StartedAt: started},
	}

	var buf bytes.Buffer
	writeSessionList(&buf, sessions)
	out := buf.String()

	tests := []string{
		"Stored sessions (2)",
		"1,200",
		"chicago-finance~",
		"indy.gov",
		"running",
		"crawl --resume <id>",
	}
	for _, want := range tests {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "chicago", n: 16, want: "chicago"},
		{in: "abcdefghijklmnopq", n: 16, want: "abcdefghijklmno~"},
		{in: "abcdefghijklmnop", n: 16, want: "abcdefghijklmnop"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
