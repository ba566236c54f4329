package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.CrawlReport {
	report := model.NewCrawlReport("3f8a2c1e-0000-4000-8000-000000000001", "https://www.chicago.gov/city/en.html", "chicago.gov")
	report.Site = "chicago"
	report.Pages = []model.PageRecord{
		{
			PageID:               1,
			Department:           "fin",
			Title:                "Finance",
			CanonicalURL:         "https://www.chicago.gov/city/en/depts/fin.html",
			RequestedURL:         "https://www.chicago.gov/city/en/depts/fin.html",
			StatusCode:           200,
			HasActionButton:      true,
			EmailAddresses:       []string{"finance@cityofchicago.org"},
			PDFLinks:             []string{"https://www.chicago.gov/content/dam/fin/budget.pdf"},
			OutsideDomainLinks:   []string{"https://www.cookcountyil.gov/", "https://twitter.com/chicago"},
			UniqueOutsideDomains: []string{"cookcountyil.gov", "twitter.com"},
			BodyWords:            []string{"pay", "parking", "tickets"},
		},
		{
			PageID:       2,
			OriginPageID: 1,
			Title:        "Home",
			CanonicalURL: "https://www.chicago.gov/city/en.html",
			RequestedURL: "https://www.chicago.gov/city/en.html",
			StatusCode:   200,
			BodyWords:    []string{"welcome"},
		},
	}
	report.DeadLinks = []model.DeadLink{
		{OriginPageID: 1, RequestedURL: "https://www.chicago.gov/missing", StatusCode: 404, Reason: "status 404"},
		{OriginPageID: 2, RequestedURL: "https://www.chicago.gov/slow", Reason: "deadline exceeded", Timeout: true},
	}
	report.FailedParses = []model.FailedParse{
		{PageID: 3, URL: "https://www.chicago.gov/form.pdf", Error: "unsupported content type: application/pdf"},
	}
	report.Pending = []model.PendingURL{{OriginPageID: 2, URL: "https://www.chicago.gov/city/en/depts/dps.html"}}
	report.Visited = []string{"https://www.chicago.gov/city/en.html", "https://www.chicago.gov/city/en/depts/fin.html"}
	report.TopWords = []model.WordCount{{Word: "parking", Count: 12}, {Word: "tickets", Count: 7}}
	report.Diagnostics = model.Diagnostics{
		PagesToCrawl:       100,
		PagesVisited:       5,
		PagesScraped:       2,
		DeadLinks:          2,
		Timeouts:           1,
		FailedReads:        1,
		RedirectDuplicates: 1,
		OutsideDomainLinks: 2,
		TotalWords:         4,
		RemainingQueue:     1,
		StartedAt:          time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt:         time.Date(2026, 3, 1, 9, 2, 0, 0, time.UTC),
		Elapsed:            2 * time.Minute,
		StopReason:         model.StopBudget,
	}
	return report
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and diagnostics", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"CITYSCRAPE REPORT",
			"Site:           chicago",
			"Domain:         chicago.gov",
			"Page budget reached",
			"DIAGNOSTICS",
			"Pages to crawl:",
			"Pages scraped:",
			"2m0s",
			"Pages per minute:",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes departments and top words", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"PAGES BY DEPARTMENT", "fin", "(none)", "TOP WORDS", "parking", "OUTSIDE DOMAINS (2)", "[+] twitter.com"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("hides dead links unless verbose", func(t *testing.T) {
		t.Parallel()

		var quiet, verbose bytes.Buffer
		if _, err := NewSimpleWriter(&quiet).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewSimpleWriter(&verbose, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Contains(quiet.String(), "DEAD LINKS") {
			t.Error("expected dead links to be hidden without verbose")
		}
		out := verbose.String()
		for _, want := range []string{"DEAD LINKS", "[404] https://www.chicago.gov/missing (from page 1)", "[timeout]", "FAILED PARSES", "application/pdf"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected verbose output to contain %q", want)
			}
		}
	})

	t.Run("limits list sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithLimit(1)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "... and 1 more") {
			t.Error("expected truncation marker for outside domains")
		}
		if strings.Contains(output, "tickets") {
			t.Error("expected only the first top word")
		}
	})

	t.Run("returns bytes written", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes, got %d", buf.Len(), n)
		}
	})

	t.Run("handles empty report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := model.NewCrawlReport("id", "https://example.org/", "example.org")
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(buf.String(), "PAGES BY DEPARTMENT") {
			t.Error("expected no department section for empty report")
		}
		if !strings.Contains(buf.String(), "unlimited") {
			t.Error("expected zero budget to print as unlimited")
		}
	})
}

func TestStopText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason string
		want   string
	}{
		{model.StopFrontierEmpty, "Complete (no more URLs to crawl)"},
		{model.StopBudget, "Page budget reached"},
		{model.StopCanceled, "Interrupted (partial results)"},
		{"", "Unknown"},
		{"other", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := stopText(tt.reason); got != tt.want {
				t.Errorf("stopText(%q) = %q, want %q", tt.reason, got, tt.want)
			}
		})
	}
}

func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{1234 * time.Microsecond, "1ms"},
		{90*time.Second + 400*time.Millisecond, "1m30s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := formatElapsed(tt.in); got != tt.want {
				t.Errorf("formatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded model.CrawlReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Domain != "chicago.gov" {
			t.Errorf("expected domain chicago.gov, got %s", decoded.Domain)
		}
		if len(decoded.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(decoded.Pages))
		}
	})

	t.Run("pretty print adds indentation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"session_id\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("compact output is one line", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected a single trailing newline")
		}
	})

	t.Run("full writer wraps with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "1.2.3").Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded JSONReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Version != "1.2.3" {
			t.Errorf("expected version 1.2.3, got %s", decoded.Version)
		}
		if decoded.Report == nil || decoded.Report.SessionID == "" {
			t.Error("expected wrapped report")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected non-zero length")
		}

		output := buf.String()
		for _, want := range []string{
			"# Crawl Report: chicago",
			"## Diagnostics",
			"## Pages by Department",
			"## Top Words",
			"## Outside Domains",
			"## Dead Links",
			"## Failed Parses",
			"```mermaid",
			"pie",
			"Recorded",
			"`chicago.gov`",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("marks timeouts in dead links table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "timeout") {
			t.Error("expected timeout status")
		}
	})

	t.Run("warns on empty report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := model.NewCrawlReport("id", "https://example.org/", "example.org")
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "No pages were recorded") {
			t.Error("expected warning for empty report")
		}
		if strings.Contains(output, "```mermaid") {
			t.Error("expected no chart without outcomes")
		}
	})

	t.Run("cautions on canceled crawl", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := createTestReport()
		report.Diagnostics.StopReason = model.StopCanceled
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "1 URL(s) remain queued") {
			t.Error("expected resume hint")
		}
	})
}

func TestEscapeCell(t *testing.T) {
	t.Parallel()

	if got := escapeCell("https://a.org/?q=a|b"); got != `https://a.org/?q=a\|b` {
		t.Errorf("escapeCell = %q", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write(*model.CrawlReport) (int, error) {
	return 0, errors.New("boom")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))
		n, err := mw.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.Len() == 0 || b.Len() == 0 {
			t.Error("expected both writers to produce output")
		}
		if n != a.Len()+b.Len() {
			t.Errorf("expected %d bytes, got %d", a.Len()+b.Len(), n)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&buf))
		if _, err := mw.Write(createTestReport()); err == nil {
			t.Fatal("expected error")
		}
		if buf.Len() != 0 {
			t.Error("expected later writers to be skipped")
		}
	})
}
