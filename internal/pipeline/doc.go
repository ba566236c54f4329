// Package pipeline runs a crawl and the work that follows it as a sequence
// of named steps over one *model.CrawlReport: opening the session record,
// crawling, computing word statistics, persisting and exporting.
//
// Steps that keep results (persist, export, output) still run after the
// crawl was interrupted, so a canceled crawl leaves a usable partial report
// and a resumable frontier behind.
//
// BatchProcessor runs the pipelines of several site presets concurrently.
package pipeline
