// Package database stores crawl sessions in SQLite.
//
// A single cityscrape.db file holds every session: its diagnostics, the page
// records, dead links and failed parses it produced, and the frontier state
// (visited and pending URLs) at termination so a later run can resume it.
//
// The driver is modernc.org/sqlite, which needs no cgo. Connections are
// limited to one so concurrent crawl workers serialize their writes.
package database
