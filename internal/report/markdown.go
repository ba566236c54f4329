package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// MarkdownWriter outputs reports as GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeDepartments(md, report)
	w.writeTopWords(md, report)
	w.writeOutsideDomains(md, report)
	w.writeDeadLinks(md, report)
	w.writeFailedParses(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	title := "Crawl Report"
	if report.Site != "" {
		title += ": " + report.Site
	}
	md.H1(title)
	md.PlainText("")

	rows := [][]string{
		{"Start URL", report.StartURL},
		{"Domain", "`" + report.Domain + "`"},
		{"Session", "`" + report.SessionID + "`"},
		{"Status", stopText(report.Diagnostics.StopReason)},
	}
	if report.ResumedFrom != "" {
		rows = append(rows, []string{"Resumed From", "`" + report.ResumedFrom + "`"})
	}
	if !report.Diagnostics.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", report.Diagnostics.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	d := report.Diagnostics
	md.H2("Diagnostics")
	md.PlainText("")

	budget := "unlimited"
	if d.PagesToCrawl > 0 {
		budget = strconv.Itoa(d.PagesToCrawl)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Pages to crawl", budget},
			{"Pages visited", strconv.Itoa(d.PagesVisited)},
			{"Pages scraped", strconv.Itoa(d.PagesScraped)},
			{"Dead links", strconv.Itoa(d.DeadLinks)},
			{"Timeouts", strconv.Itoa(d.Timeouts)},
			{"Failed reads", strconv.Itoa(d.FailedReads)},
			{"Redirect duplicates", strconv.Itoa(d.RedirectDuplicates)},
			{"Outside-domain links", strconv.Itoa(d.OutsideDomainLinks)},
			{"Total words", strconv.Itoa(d.TotalWords)},
			{"Remaining queue", strconv.Itoa(d.RemainingQueue)},
			{"Total time", formatElapsed(d.Elapsed)},
		},
	})
	md.PlainText("")

	if counts := report.OutcomeCounts(); len(counts) > 1 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, report)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts []model.OutcomeCount) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("URL Outcomes"),
		piechart.WithShowData(true),
	)
	for _, c := range counts {
		chart.LabelAndIntValue(outcomeLabel(c.Outcome), uint64(c.Count)) //nolint:gosec // counts are non-negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func outcomeLabel(o model.Outcome) string {
	switch o {
	case model.OutcomeRecorded:
		return "Recorded"
	case model.OutcomeDead:
		return "Dead"
	case model.OutcomeTimeout:
		return "Timeout"
	case model.OutcomeFailedParse:
		return "Failed parse"
	case model.OutcomeDuplicate:
		return "Redirect duplicate"
	case model.OutcomeOffsite:
		return "Offsite redirect"
	default:
		return o.String()
	}
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	d := report.Diagnostics
	switch {
	case d.StopReason == model.StopCanceled:
		md.Cautionf("The crawl was interrupted. %d URL(s) remain queued and can be resumed.", d.RemainingQueue)
	case len(report.Pages) == 0:
		md.Warningf("No pages were recorded. Check the start URL and limiting domain.")
	case len(report.DeadLinks) > 0:
		md.Importantf("%d dead link(s) found across %d page(s).", len(report.DeadLinks), len(report.Pages))
	case d.StopReason == model.StopBudget:
		md.Note("The page budget was reached before the frontier was exhausted.")
	default:
		md.Tip("Every reachable page was crawled without dead links.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDepartments(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.Pages) == 0 {
		return
	}
	md.H2("Pages by Department")
	md.PlainText("")

	depts := departments(report)
	rows := make([][]string, len(depts))
	for i, d := range depts {
		rows[i] = []string{d.name, strconv.Itoa(d.count)}
	}
	md.Table(markdown.TableSet{Header: []string{"Department", "Pages"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeTopWords(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.TopWords) == 0 {
		return
	}
	md.H2("Top Words")
	md.PlainText("")

	rows := make([][]string, len(report.TopWords))
	for i, wc := range report.TopWords {
		rows[i] = []string{strconv.Itoa(i + 1), wc.Word, strconv.Itoa(wc.Count)}
	}
	md.Table(markdown.TableSet{Header: []string{"#", "Word", "Count"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutsideDomains(md *markdown.Markdown, report *model.CrawlReport) {
	domains := report.UniqueOutsideDomains()
	if len(domains) == 0 {
		return
	}
	md.H2("Outside Domains")
	md.PlainText("")
	md.BulletList(domains...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeDeadLinks(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.DeadLinks) == 0 {
		return
	}
	md.H2("Dead Links")
	md.PlainText("")

	rows := make([][]string, len(report.DeadLinks))
	for i, d := range report.DeadLinks {
		status := strconv.Itoa(d.StatusCode)
		switch {
		case d.Timeout:
			status = "timeout"
		case d.StatusCode == 0:
			status = "error"
		}
		rows[i] = []string{escapeCell(d.RequestedURL), status, strconv.Itoa(d.OriginPageID)}
	}
	md.Table(markdown.TableSet{Header: []string{"URL", "Status", "Linked From"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailedParses(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.FailedParses) == 0 {
		return
	}
	md.H2("Failed Parses")
	md.PlainText("")
	for _, f := range report.FailedParses {
		md.Details(f.URL, f.Error)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [cityscrape](https://github.com/CityBaseInc/cityscrape)*")
}

// escapeCell keeps pipes in URLs from breaking table rows.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
