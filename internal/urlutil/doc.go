// Package urlutil turns raw href strings into absolute URLs and canonical
// dedup keys.
//
// All functions are pure. Canonicalize is the key used by the frontier's
// visited and pending sets, so two URLs that canonicalize to the same string
// are treated as the same page.
package urlutil
