package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default budget is 100", func(t *testing.T) {
		t.Parallel()
		if cfg.PageBudget != 100 {
			t.Errorf("expected PageBudget to be 100, got %d", cfg.PageBudget)
		}
	})

	t.Run("default workers is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 4 {
			t.Errorf("expected Workers to be 4, got %d", cfg.Workers)
		}
	})

	t.Run("default timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default redirect limit is 10", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRedirects != 10 {
			t.Errorf("expected MaxRedirects to be 10, got %d", cfg.MaxRedirects)
		}
	})

	t.Run("default resolve mode is strict", func(t *testing.T) {
		t.Parallel()
		if cfg.LegacyResolve {
			t.Error("expected LegacyResolve to be false")
		}
	})

	t.Run("default output is text", func(t *testing.T) {
		t.Parallel()
		if len(cfg.OutputFormats) != 1 || cfg.OutputFormats[0] != FormatText {
			t.Errorf("expected [text], got %v", cfg.OutputFormats)
		}
	})
}

func TestConfigNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		startURL   string
		domain     string
		formats    []string
		wantDomain string
		wantFormat []string
	}{
		{
			name:       "domain derived from start URL",
			startURL:   " https://WWW.CityOfChicago.org/city/en.html ",
			wantDomain: "cityofchicago.org",
			wantFormat: []string{},
		},
		{
			name:       "explicit domain is kept",
			startURL:   "https://www.cityofchicago.org/",
			domain:     " CityOfChicago.org ",
			wantDomain: "cityofchicago.org",
			wantFormat: []string{},
		},
		{
			name:       "comma separated formats are split",
			startURL:   "https://www.indy.gov/",
			formats:    []string{"JSON, csv", "xlsx"},
			wantDomain: "indy.gov",
			wantFormat: []string{"json", "csv", "xlsx"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{StartURL: tt.startURL, Domain: tt.domain, OutputFormats: tt.formats}
			cfg.Normalize()

			if cfg.Domain != tt.wantDomain {
				t.Errorf("expected domain %q, got %q", tt.wantDomain, cfg.Domain)
			}
			if strings.Join(cfg.OutputFormats, ",") != strings.Join(tt.wantFormat, ",") {
				t.Errorf("expected formats %v, got %v", tt.wantFormat, cfg.OutputFormats)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.StartURL = "https://www.cityofchicago.org/city/en.html"
		cfg.Domain = "cityofchicago.org"
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("zero budget means unlimited", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.PageBudget = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "empty start URL", mutate: func(c *Config) { c.StartURL = "" }, want: ErrNoStartURL},
		{name: "empty domain", mutate: func(c *Config) { c.Domain = "" }, want: ErrNoDomain},
		{name: "negative budget", mutate: func(c *Config) { c.PageBudget = -1 }, want: ErrInvalidBudget},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, want: ErrInvalidWorkers},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "negative delay", mutate: func(c *Config) { c.Delay = -time.Second }, want: ErrInvalidDelay},
		{name: "negative rate", mutate: func(c *Config) { c.RatePerSecond = -1 }, want: ErrInvalidRate},
		{name: "negative body size", mutate: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "negative redirects", mutate: func(c *Config) { c.MaxRedirects = -1 }, want: ErrInvalidMaxRedirects},
		{name: "unknown format", mutate: func(c *Config) { c.OutputFormats = []string{"pdf"} }, want: ErrUnknownOutputFormat},
		{name: "multi character delimiter", mutate: func(c *Config) { c.CSVDelimiter = ";;" }, want: ErrInvalidDelimiter},
		{name: "quote delimiter", mutate: func(c *Config) { c.CSVDelimiter = `"` }, want: ErrInvalidDelimiter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want rune
	}{
		{in: "", want: ','},
		{in: "`", want: '`'},
		{in: `\t`, want: '\t'},
		{in: ";", want: ';'},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{CSVDelimiter: tt.in}
			got, err := cfg.Delimiter()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestConfigDatabasePath(t *testing.T) {
	t.Parallel()

	cfg := &Config{DBDir: "/tmp/scrape"}
	if got := cfg.DatabasePath(); got != filepath.Join("/tmp/scrape", "cityscrape.db") {
		t.Errorf("unexpected database path %q", got)
	}

	cfg = &Config{}
	if got := cfg.DatabasePath(); got != filepath.Join(XDGDataDir(), DatabaseFile) {
		t.Errorf("unexpected default database path %q", got)
	}
}

func TestFileSite(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	cf := &File{
		Defaults: SiteConfig{
			PageBudget:    50,
			Delay:         time.Second,
			LegacyResolve: &yes,
			Headers:       map[string]string{"X-Team": "research"},
			OmitWords:     []string{"city"},
		},
		Sites: map[string]SiteConfig{
			"chicago": {
				StartURL: "https://www.cityofchicago.org/city/en.html",
				Domain:   "cityofchicago.org",
				Ignore:   []string{"my.", "/real_estate/"},
			},
			"indianapolis": {
				StartURL:      "https://www.indy.gov/",
				PageBudget:    10,
				LegacyResolve: &no,
				Headers:       map[string]string{"X-Site": "indy"},
			},
		},
	}

	t.Run("defaults fill unset fields", func(t *testing.T) {
		t.Parallel()

		site, err := cf.Site("chicago")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.PageBudget != 50 || site.Delay != time.Second {
			t.Errorf("expected defaults, got budget=%d delay=%v", site.PageBudget, site.Delay)
		}
		if site.LegacyResolve == nil || !*site.LegacyResolve {
			t.Error("expected legacy resolve from defaults")
		}
		if len(site.Ignore) != 2 {
			t.Errorf("expected 2 ignore entries, got %v", site.Ignore)
		}
	})

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		site, err := cf.Site("indianapolis")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.PageBudget != 10 {
			t.Errorf("expected budget 10, got %d", site.PageBudget)
		}
		if site.LegacyResolve == nil || *site.LegacyResolve {
			t.Error("expected legacy resolve turned off")
		}
		if site.Headers["X-Team"] != "research" || site.Headers["X-Site"] != "indy" {
			t.Errorf("expected merged headers, got %v", site.Headers)
		}
		if len(cf.Defaults.Headers) != 1 {
			t.Error("merging must not modify the defaults")
		}
	})

	t.Run("unknown site", func(t *testing.T) {
		t.Parallel()

		if _, err := cf.Site("springfield"); !errors.Is(err, ErrUnknownSite) {
			t.Errorf("expected ErrUnknownSite, got %v", err)
		}
	})

	t.Run("site names are sorted", func(t *testing.T) {
		t.Parallel()

		names := cf.SiteNames()
		if len(names) != 2 || names[0] != "chicago" || names[1] != "indianapolis" {
			t.Errorf("unexpected names %v", names)
		}
	})
}

func TestConfigApplySite(t *testing.T) {
	t.Parallel()

	stem := true
	cfg := NewConfig()
	cfg.Headers = map[string]string{"Accept-Language": "en"}
	cfg.ApplySite("chicago-finance", SiteConfig{
		StartURL:     "https://www.cityofchicago.org/city/en/depts/fin.html",
		Domain:       "cityofchicago.org",
		RequiredPath: "/depts/fin",
		Workers:      2,
		StemWords:    &stem,
		Headers:      map[string]string{"X-Site": "fin"},
	})

	if cfg.Site != "chicago-finance" {
		t.Errorf("expected site name, got %q", cfg.Site)
	}
	if cfg.RequiredPath != "/depts/fin" || cfg.Workers != 2 || !cfg.StemWords {
		t.Errorf("preset not applied: %+v", cfg)
	}
	if cfg.PageBudget != DefaultPageBudget {
		t.Errorf("expected untouched budget, got %d", cfg.PageBudget)
	}
	if len(cfg.Headers) != 2 {
		t.Errorf("expected merged headers, got %v", cfg.Headers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.cityscrape.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".cityscrape.yaml")
		content := `defaults:
  pageBudget: 200
  delay: 500ms
  userAgent: "research-bot"
sites:
  chicago:
    startURL: "https://www.cityofchicago.org/city/en.html"
    domain: "cityofchicago.org"
    legacyResolve: true
    ignore:
      - "my."
    headers:
      X-Team: "research"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Defaults.PageBudget != 200 || cf.Defaults.Delay != 500*time.Millisecond {
			t.Errorf("unexpected defaults %+v", cf.Defaults)
		}

		site, err := cf.Site("chicago")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.Domain != "cityofchicago.org" || site.UserAgent != "research-bot" {
			t.Errorf("unexpected site %+v", site)
		}
		if site.LegacyResolve == nil || !*site.LegacyResolve {
			t.Error("expected legacyResolve true")
		}
		if site.Headers["X-Team"] != "research" {
			t.Errorf("expected X-Team header, got %v", site.Headers)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".cityscrape.yaml")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".cityscrape.yaml")
		if err := os.WriteFile(configPath, []byte("defaults:\n  workers: 2\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

func TestReadURLList(t *testing.T) {
	t.Parallel()

	input := `# queue exported 2024-03-01
url,origin_page_id
https://www.cityofchicago.org/city/en/depts/fin.html,3

"https://www.cityofchicago.org/city/en/depts/dps.html",7
   https://www.cityofchicago.org/city/en/about.html   
`
	urls, err := ReadURLList(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"https://www.cityofchicago.org/city/en/depts/fin.html",
		"https://www.cityofchicago.org/city/en/depts/dps.html",
		"https://www.cityofchicago.org/city/en/about.html",
	}
	if strings.Join(urls, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got %v", want, urls)
	}
}

func TestLoadURLList(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := LoadURLList(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("reads file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "visited.txt")
		if err := os.WriteFile(path, []byte("https://www.indy.gov/a\nhttps://www.indy.gov/b\n"), 0600); err != nil {
			t.Fatalf("failed to write list: %v", err)
		}
		urls, err := LoadURLList(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(urls) != 2 {
			t.Errorf("expected 2 urls, got %v", urls)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("unexpected data dir %q", XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("unexpected config dir %q", XDGConfigDir())
	}
}
