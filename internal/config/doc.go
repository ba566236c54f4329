// Package config holds the crawl configuration: the flat Config built from
// defaults, CLI flags and named site presets, the YAML configuration file
// loader, and readers for the URL lists used to resume a crawl.
package config
