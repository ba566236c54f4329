// Package report renders a CrawlReport.
//
// Writers print one report to an io.Writer:
//   - SimpleWriter: the diagnostics block and summaries for the terminal
//   - JSONWriter: the full report as JSON
//   - MarkdownWriter: GitHub Flavored Markdown with an outcome pie chart
//
// Exporter writes the record tables to timestamped CSV files or to one XLSX
// workbook in an output directory.
package report
