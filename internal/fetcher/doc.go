// Package fetcher downloads pages for the crawler.
//
// Fetch never returns a Go error. Every failure is folded into the returned
// Result so the crawl loop can switch on Result.Outcome. The Result carries
// the post-redirect URL separately from the requested one.
//
// The HTTP client built by NewHTTPClient limits redirects, injects configured
// cookies and headers on every hop, and can dial through a SOCKS5 or HTTP
// proxy. A HostLimiter adds per-host politeness on top.
package fetcher
