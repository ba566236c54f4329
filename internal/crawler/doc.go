// Package crawler is the crawl engine for municipal web sites.
//
// # Components
//
//   - Spider: the orchestrator. It dispatches frontier entries to a bounded
//     pool of workers, each running fetch, redirect dedup, parse, link
//     admission and record for one URL.
//   - Session: the state of one run. It owns the frontier, the collected
//     records and the atomic diagnostics counters.
//   - Parser: extracts raw links, title, paragraph text, emails and the
//     structural probes from an HTML document.
//   - FieldExtractor: resolves links against the page URL and sorts them into
//     followed, PDF and outside-domain sets; derives department and body
//     words.
//
// # Outcomes
//
// Every dequeued URL ends in exactly one outcome: a PageRecord, a DeadLink,
// a FailedParse, or a silent discard when its post-redirect URL was already
// visited. Per-page failures never abort the crawl and every dequeued URL is
// marked visited, so no URL is fetched twice.
//
// # Usage
//
//	policy := admission.NewPolicy(admission.Config{Domain: "cityofchicago.org"})
//	spider := crawler.NewSpider(fetcher.New(nil), policy, crawler.WithWorkers(8))
//	report, err := spider.Crawl(ctx, crawler.NewSession("", 500), seed)
package crawler
