// Package main provides the entry point for the cityscrape CLI.
//
// cityscrape crawls a municipal website within one limiting domain and
// records, for every page, its department, links, emails, PDF links and
// body words. Dead links and unreadable pages are reported separately.
//
// Usage:
//
//	cityscrape crawl --url https://www.chicago.gov/city/en.html
//	cityscrape crawl --site chicago --site indianapolis
//
// See --help for all available options.
package main

import "os"

func main() {
	os.Exit(Execute())
}
