package config

import (
	"fmt"
	"sort"
	"time"
)

// SiteConfig is one named crawl preset in the configuration file. Zero
// values leave the underlying setting untouched.
type SiteConfig struct {
	StartURL     string   `yaml:"startURL,omitempty"`
	Domain       string   `yaml:"domain,omitempty"`
	RequiredPath string   `yaml:"requiredPath,omitempty"`
	Ignore       []string `yaml:"ignore,omitempty"`

	// AllowedExtensions replaces the followed extension list.
	AllowedExtensions []string `yaml:"allowedExtensions,omitempty"`

	PageBudget    int           `yaml:"pageBudget,omitempty"`
	Workers       int           `yaml:"workers,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Delay         time.Duration `yaml:"delay,omitempty"`
	RatePerSecond float64       `yaml:"ratePerSecond,omitempty"`
	UserAgent     string        `yaml:"userAgent,omitempty"`

	// Cookie is an HTTP cookie, "name=value" or "name1=value1; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are merged key by key with the defaults.
	Headers map[string]string `yaml:"headers,omitempty"`

	ProxyURL string `yaml:"proxyURL,omitempty"`

	// LegacyResolve and StemWords are pointers so a site can turn off a
	// setting enabled in defaults.
	LegacyResolve *bool `yaml:"legacyResolve,omitempty"`
	StemWords     *bool `yaml:"stemWords,omitempty"`

	LinkSection          string   `yaml:"linkSection,omitempty"`
	TextSelectors        []string `yaml:"textSelectors,omitempty"`
	ActionButtonSelector string   `yaml:"actionButtonSelector,omitempty"`
	NavPanelSelector     string   `yaml:"navPanelSelector,omitempty"`
	DepartmentPatterns   []string `yaml:"departmentPatterns,omitempty"`
	OmitWords            []string `yaml:"omitWords,omitempty"`
	SkipSubstrings       []string `yaml:"skipSubstrings,omitempty"`
}

// File is the structure of the configuration file.
type File struct {
	// Sites maps preset names to their configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless the site overrides it.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// SiteNames returns the preset names in sorted order.
func (cf *File) SiteNames() []string {
	names := make([]string, 0, len(cf.Sites))
	for name := range cf.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Site returns the named preset merged over the defaults.
func (cf *File) Site(name string) (SiteConfig, error) {
	site, ok := cf.Sites[name]
	if !ok {
		return SiteConfig{}, fmt.Errorf("%w: %s", ErrUnknownSite, name)
	}
	return merge(cf.Defaults, site), nil
}

// merge overlays s onto base.
func merge(base, s SiteConfig) SiteConfig {
	out := base
	setString(&out.StartURL, s.StartURL)
	setString(&out.Domain, s.Domain)
	setString(&out.RequiredPath, s.RequiredPath)
	setString(&out.UserAgent, s.UserAgent)
	setString(&out.Cookie, s.Cookie)
	setString(&out.ProxyURL, s.ProxyURL)
	setString(&out.LinkSection, s.LinkSection)
	setString(&out.ActionButtonSelector, s.ActionButtonSelector)
	setString(&out.NavPanelSelector, s.NavPanelSelector)
	setSlice(&out.Ignore, s.Ignore)
	setSlice(&out.AllowedExtensions, s.AllowedExtensions)
	setSlice(&out.TextSelectors, s.TextSelectors)
	setSlice(&out.DepartmentPatterns, s.DepartmentPatterns)
	setSlice(&out.OmitWords, s.OmitWords)
	setSlice(&out.SkipSubstrings, s.SkipSubstrings)
	if s.PageBudget != 0 {
		out.PageBudget = s.PageBudget
	}
	if s.Workers != 0 {
		out.Workers = s.Workers
	}
	if s.Timeout != 0 {
		out.Timeout = s.Timeout
	}
	if s.Delay != 0 {
		out.Delay = s.Delay
	}
	if s.RatePerSecond != 0 {
		out.RatePerSecond = s.RatePerSecond
	}
	if s.LegacyResolve != nil {
		out.LegacyResolve = s.LegacyResolve
	}
	if s.StemWords != nil {
		out.StemWords = s.StemWords
	}
	if len(s.Headers) > 0 {
		headers := make(map[string]string, len(base.Headers)+len(s.Headers))
		for k, v := range base.Headers {
			headers[k] = v
		}
		for k, v := range s.Headers {
			headers[k] = v
		}
		out.Headers = headers
	}
	return out
}

// ApplySite overlays a preset onto c. Fields set in c by the caller after
// ApplySite win, so flags are applied last.
func (c *Config) ApplySite(name string, s SiteConfig) {
	c.Site = name
	setString(&c.StartURL, s.StartURL)
	setString(&c.Domain, s.Domain)
	setString(&c.RequiredPath, s.RequiredPath)
	setString(&c.UserAgent, s.UserAgent)
	setString(&c.Cookie, s.Cookie)
	setString(&c.ProxyURL, s.ProxyURL)
	setString(&c.LinkSection, s.LinkSection)
	setString(&c.ActionButtonSelector, s.ActionButtonSelector)
	setString(&c.NavPanelSelector, s.NavPanelSelector)
	setSlice(&c.Ignore, s.Ignore)
	setSlice(&c.AllowedExtensions, s.AllowedExtensions)
	setSlice(&c.TextSelectors, s.TextSelectors)
	setSlice(&c.DepartmentPatterns, s.DepartmentPatterns)
	setSlice(&c.OmitWords, s.OmitWords)
	setSlice(&c.SkipSubstrings, s.SkipSubstrings)
	if s.PageBudget != 0 {
		c.PageBudget = s.PageBudget
	}
	if s.Workers != 0 {
		c.Workers = s.Workers
	}
	if s.Timeout != 0 {
		c.Timeout = s.Timeout
	}
	if s.Delay != 0 {
		c.Delay = s.Delay
	}
	if s.RatePerSecond != 0 {
		c.RatePerSecond = s.RatePerSecond
	}
	if s.LegacyResolve != nil {
		c.LegacyResolve = *s.LegacyResolve
	}
	if s.StemWords != nil {
		c.StemWords = *s.StemWords
	}
	if len(s.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(s.Headers))
		}
		for k, v := range s.Headers {
			c.Headers[k] = v
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setSlice(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = append([]string(nil), v...)
	}
}
