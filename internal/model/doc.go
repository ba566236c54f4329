// Package model defines the records produced by a crawl.
//
// This package contains the following main types:
//   - PageRecord: facts extracted from one successfully parsed page
//   - DeadLink: a URL that could not be fetched
//   - FailedParse: a page that was fetched but could not be parsed
//   - Diagnostics: aggregate counters for one crawl run
//   - CrawlReport: everything a run produced, handed to exporters
//
// The crawler, database, pipeline and report packages all share these types,
// so they live in their own package. All types serialize to JSON.
package model
