package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// SimpleWriter outputs a plain text summary for the terminal: the
// diagnostics block, pages per department, top words and, when verbose,
// the dead links and failed parses.
type SimpleWriter struct {
	baseWriter

	verbose bool

	// limit caps the rows of each list section.
	limit int
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every dead link and failed parse.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithLimit caps each list section at n rows. Zero means no cap.
func WithLimit(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.limit = n
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output), limit: 20}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeDiagnostics(&sb, report.Diagnostics)
	w.writeDepartments(&sb, report)
	w.writeTopWords(&sb, report)
	w.writeOutsideDomains(&sb, report)
	if w.verbose {
		w.writeDeadLinks(&sb, report)
		w.writeFailedParses(&sb, report)
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         CITYSCRAPE REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if report.Site != "" {
		fmt.Fprintf(sb, "Site:           %s\n", report.Site)
	}
	fmt.Fprintf(sb, "Start URL:      %s\n", report.StartURL)
	fmt.Fprintf(sb, "Domain:         %s\n", report.Domain)
	fmt.Fprintf(sb, "Session:        %s\n", report.SessionID)
	if report.ResumedFrom != "" {
		fmt.Fprintf(sb, "Resumed from:   %s\n", report.ResumedFrom)
	}
	if !report.Diagnostics.StartedAt.IsZero() {
		fmt.Fprintf(sb, "Started:        %s\n", report.Diagnostics.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(sb, "Stopped:        %s\n", stopText(report.Diagnostics.StopReason))
	sb.WriteString("\n")
}

func stopText(reason string) string {
	switch reason {
	case model.StopFrontierEmpty:
		return "Complete (no more URLs to crawl)"
	case model.StopBudget:
		return "Page budget reached"
	case model.StopCanceled:
		return "Interrupted (partial results)"
	case "":
		return "Unknown"
	default:
		return reason
	}
}

func (w *SimpleWriter) writeDiagnostics(sb *strings.Builder, d model.Diagnostics) {
	section(sb, "DIAGNOSTICS")

	budget := "unlimited"
	if d.PagesToCrawl > 0 {
		budget = humanize.Comma(int64(d.PagesToCrawl))
	}
	rows := [][2]string{
		{"Pages to crawl", budget},
		{"Pages visited", humanize.Comma(int64(d.PagesVisited))},
		{"Pages scraped", humanize.Comma(int64(d.PagesScraped))},
		{"Dead links", humanize.Comma(int64(d.DeadLinks))},
		{"Timeouts", humanize.Comma(int64(d.Timeouts))},
		{"Failed reads", humanize.Comma(int64(d.FailedReads))},
		{"Redirect duplicates", humanize.Comma(int64(d.RedirectDuplicates))},
		{"Offsite redirects", humanize.Comma(int64(d.OffsiteRedirects))},
		{"Outside-domain links", humanize.Comma(int64(d.OutsideDomainLinks))},
		{"Total words", humanize.Comma(int64(d.TotalWords))},
		{"Remaining queue", humanize.Comma(int64(d.RemainingQueue))},
		{"Total time", formatElapsed(d.Elapsed)},
	}
	if rate := pagesPerMinute(d); rate > 0 {
		rows = append(rows, [2]string{"Pages per minute", humanize.CommafWithDigits(rate, 1)})
	}
	for _, r := range rows {
		fmt.Fprintf(sb, "  %-22s %s\n", r[0]+":", r[1])
	}
	sb.WriteString("\n")
}

func formatElapsed(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func pagesPerMinute(d model.Diagnostics) float64 {
	if d.Elapsed <= 0 || d.PagesScraped == 0 {
		return 0
	}
	return float64(d.PagesScraped) / d.Elapsed.Minutes()
}

// departmentCount is one row of the pages-per-department table.
type departmentCount struct {
	name  string
	count int
}

// departments returns departments sorted by page count, then name. Pages
// without a department are reported as "(none)".
func departments(report *model.CrawlReport) []departmentCount {
	byDept := report.PagesByDepartment()
	out := make([]departmentCount, 0, len(byDept))
	for name, n := range byDept {
		if name == "" {
			name = "(none)"
		}
		out = append(out, departmentCount{name: name, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func (w *SimpleWriter) capped(n int) int {
	if w.limit > 0 && n > w.limit {
		return w.limit
	}
	return n
}

func (w *SimpleWriter) writeDepartments(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Pages) == 0 {
		return
	}
	section(sb, "PAGES BY DEPARTMENT")
	depts := departments(report)
	for _, d := range depts[:w.capped(len(depts))] {
		fmt.Fprintf(sb, "  %-40s %s\n", d.name, humanize.Comma(int64(d.count)))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTopWords(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.TopWords) == 0 {
		return
	}
	section(sb, "TOP WORDS")
	for i, wc := range report.TopWords[:w.capped(len(report.TopWords))] {
		fmt.Fprintf(sb, "  %3d. %-30s %s\n", i+1, wc.Word, humanize.Comma(int64(wc.Count)))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeOutsideDomains(sb *strings.Builder, report *model.CrawlReport) {
	domains := report.UniqueOutsideDomains()
	if len(domains) == 0 {
		return
	}
	section(sb, fmt.Sprintf("OUTSIDE DOMAINS (%d)", len(domains)))
	for _, d := range domains[:w.capped(len(domains))] {
		fmt.Fprintf(sb, "  [+] %s\n", d)
	}
	if len(domains) > w.capped(len(domains)) {
		fmt.Fprintf(sb, "  ... and %d more\n", len(domains)-w.capped(len(domains)))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDeadLinks(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.DeadLinks) == 0 {
		return
	}
	section(sb, "DEAD LINKS")
	for _, d := range report.DeadLinks {
		status := "timeout"
		if !d.Timeout {
			status = fmt.Sprintf("%d", d.StatusCode)
			if d.StatusCode == 0 {
				status = "error"
			}
		}
		fmt.Fprintf(sb, "  [%s] %s (from page %d)\n", status, d.RequestedURL, d.OriginPageID)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailedParses(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.FailedParses) == 0 {
		return
	}
	section(sb, "FAILED PARSES")
	for _, f := range report.FailedParses {
		fmt.Fprintf(sb, "  * %s\n    %s\n", f.URL, f.Error)
	}
	sb.WriteString("\n")
}
