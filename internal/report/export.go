package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// Export kinds used in file names.
const (
	KindPages     = "pages"
	KindDeadLinks = "deadlinks"
	KindFailed    = "failed"
	KindQueue     = "queue"
	KindVisited   = "visited"
	KindWorkbook  = "report"
)

// fileTimestamp is the layout of the timestamp in exported file names.
const fileTimestamp = "20060102-150405"

// listSeparator joins set and sequence fields in a CSV cell.
const listSeparator = "; "

// ErrNoOutputDir is returned when an export has nowhere to go.
var ErrNoOutputDir = errors.New("export output directory is empty")

// ExportOptions configures an Exporter.
type ExportOptions struct {
	// Dir is the output directory. It is created when missing.
	Dir string

	// Site prefixes every file name. Empty means "crawl".
	Site string

	// Delimiter is the CSV field separator. Zero means ','.
	Delimiter rune

	// Now stamps file names. Nil means time.Now.
	Now func() time.Time
}

// Exporter writes a crawl report to files in an output directory.
type Exporter struct {
	opts ExportOptions
}

// NewExporter creates an Exporter.
func NewExporter(opts ExportOptions) *Exporter {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Site == "" {
		opts.Site = "crawl"
	}
	return &Exporter{opts: opts}
}

// FileName builds "<site>_<kind>_<YYYYMMDD-HHMMSS>.<ext>".
func FileName(site, kind string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(site), kind, ts.Format(fileTimestamp), ext)
}

func sanitizeFilename(name string) string {
	r := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-", "*", "", "?", "", "\"", "", "<", "", ">", "", "|", "")
	name = r.Replace(strings.TrimSpace(name))
	if name == "" {
		return "crawl"
	}
	return name
}

func (e *Exporter) prepare() (time.Time, error) {
	if e.opts.Dir == "" {
		return time.Time{}, ErrNoOutputDir
	}
	if err := os.MkdirAll(e.opts.Dir, 0o750); err != nil {
		return time.Time{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	return e.opts.Now(), nil
}

// ExportCSV writes one CSV file per kind and returns the paths written.
// The queue and visited files carry the URL in the first column so they can
// be fed back to a later run.
func (e *Exporter) ExportCSV(report *model.CrawlReport) ([]string, error) {
	ts, err := e.prepare()
	if err != nil {
		return nil, err
	}

	tables := []struct {
		kind string
		rows [][]string
	}{
		{KindPages, pageRows(report)},
		{KindDeadLinks, deadLinkRows(report)},
		{KindFailed, failedParseRows(report)},
		{KindQueue, queueRows(report)},
		{KindVisited, visitedRows(report)},
	}

	paths := make([]string, 0, len(tables))
	for _, t := range tables {
		path := filepath.Join(e.opts.Dir, FileName(e.opts.Site, t.kind, ts, "csv"))
		if err := e.writeCSV(path, t.rows); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (e *Exporter) writeCSV(path string, rows [][]string) (err error) {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(file)
	w.Comma = e.opts.Delimiter
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var pageHeader = []string{
	"page_id", "origin_page_id", "department", "title", "canonical_url", "requested_url",
	"status_code", "has_action_button", "has_nav_panel", "has_quick_links",
	"email_addresses", "pdf_links", "outside_domain_links", "unique_outside_domains",
	"links_found", "links_queued", "word_count", "body_words", "content_hash",
}

func pageRows(report *model.CrawlReport) [][]string {
	rows := make([][]string, 0, len(report.Pages)+1)
	rows = append(rows, pageHeader)
	for i := range report.Pages {
		p := &report.Pages[i]
		rows = append(rows, []string{
			strconv.Itoa(p.PageID),
			strconv.Itoa(p.OriginPageID),
			p.Department,
			p.Title,
			p.CanonicalURL,
			p.RequestedURL,
			strconv.Itoa(p.StatusCode),
			strconv.FormatBool(p.HasActionButton),
			strconv.FormatBool(p.HasNavPanel),
			strconv.FormatBool(p.HasQuickLinks),
			strings.Join(p.EmailAddresses, listSeparator),
			strings.Join(p.PDFLinks, listSeparator),
			strings.Join(p.OutsideDomainLinks, listSeparator),
			strings.Join(p.UniqueOutsideDomains, listSeparator),
			strconv.Itoa(p.LinksFound),
			strconv.Itoa(p.LinksQueued),
			strconv.Itoa(len(p.BodyWords)),
			strings.Join(p.BodyWords, " "),
			p.ContentHash,
		})
	}
	return rows
}

func deadLinkRows(report *model.CrawlReport) [][]string {
	rows := [][]string{{"requested_url", "origin_page_id", "status_code", "timeout", "reason"}}
	for _, d := range report.DeadLinks {
		rows = append(rows, []string{
			d.RequestedURL,
			strconv.Itoa(d.OriginPageID),
			strconv.Itoa(d.StatusCode),
			strconv.FormatBool(d.Timeout),
			d.Reason,
		})
	}
	return rows
}

func failedParseRows(report *model.CrawlReport) [][]string {
	rows := [][]string{{"url", "page_id", "error"}}
	for _, f := range report.FailedParses {
		rows = append(rows, []string{f.URL, strconv.Itoa(f.PageID), f.Error})
	}
	return rows
}

func queueRows(report *model.CrawlReport) [][]string {
	rows := [][]string{{"url", "origin_page_id"}}
	for _, p := range report.Pending {
		rows = append(rows, []string{p.URL, strconv.Itoa(p.OriginPageID)})
	}
	return rows
}

func visitedRows(report *model.CrawlReport) [][]string {
	rows := [][]string{{"url"}}
	for _, u := range report.Visited {
		rows = append(rows, []string{u})
	}
	return rows
}

// Workbook sheet names.
const (
	SheetPages        = "Pages"
	SheetDeadLinks    = "Dead Links"
	SheetFailedParses = "Failed Parses"
	SheetSummary      = "Summary"
)

// ExportXLSX writes a single workbook and returns its path.
func (e *Exporter) ExportXLSX(report *model.CrawlReport) (string, error) {
	ts, err := e.prepare()
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // nothing to release after SaveAs

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E79"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := []struct {
		name string
		rows [][]string
	}{
		{SheetPages, pageRows(report)},
		{SheetDeadLinks, deadLinkRows(report)},
		{SheetFailedParses, failedParseRows(report)},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.rows, headerStyle); err != nil {
			return "", err
		}
	}
	if err := writeSummarySheet(f, report, ts); err != nil {
		return "", err
	}

	f.DeleteSheet("Sheet1") //nolint:errcheck // the default sheet always exists
	if idx, err := f.GetSheetIndex(SheetPages); err == nil {
		f.SetActiveSheet(idx)
	}

	path := filepath.Join(e.opts.Dir, FileName(e.opts.Site, KindWorkbook, ts, "xlsx"))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

func writeSheet(f *excelize.File, name string, rows [][]string, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", r+1, name, err)
		}
	}

	header := rows[0]
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	for i, col := range header {
		colName, _ := excelize.ColumnNumberToName(i + 1) //nolint:errcheck // i+1 is in range
		width := float64(len(col) + 5)
		width = max(width, 15)
		width = min(width, 50)
		if err := f.SetColWidth(name, colName, colName, width); err != nil {
			return err
		}
	}

	if len(rows) > 1 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(rows))
		if err := f.AutoFilter(name, ref, nil); err != nil {
			return fmt.Errorf("failed to add filter to %s: %w", name, err)
		}
	}

	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummarySheet(f *excelize.File, report *model.CrawlReport, ts time.Time) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetSummary, err)
	}

	d := report.Diagnostics
	rows := [][2]any{
		{"Site", report.Site},
		{"Start URL", report.StartURL},
		{"Domain", report.Domain},
		{"Session", report.SessionID},
		{"Stop reason", d.StopReason},
		{"Pages to crawl", d.PagesToCrawl},
		{"Pages visited", d.PagesVisited},
		{"Pages scraped", d.PagesScraped},
		{"Dead links", d.DeadLinks},
		{"Timeouts", d.Timeouts},
		{"Failed reads", d.FailedReads},
		{"Redirect duplicates", d.RedirectDuplicates},
		{"Offsite redirects", d.OffsiteRedirects},
		{"Outside-domain links", d.OutsideDomainLinks},
		{"Total words", d.TotalWords},
		{"Remaining queue", d.RemainingQueue},
		{"Total time", formatElapsed(d.Elapsed)},
		{"Exported", ts.Format(time.RFC3339)},
	}
	for i, row := range rows {
		if err := f.SetCellValue(SheetSummary, fmt.Sprintf("A%d", i+1), row[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(SheetSummary, fmt.Sprintf("B%d", i+1), row[1]); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetSummary, "A", "A", 24); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "B", "B", 60)
}
