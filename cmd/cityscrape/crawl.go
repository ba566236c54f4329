package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/CityBaseInc/cityscrape/internal/config"
	"github.com/CityBaseInc/cityscrape/internal/database"
	"github.com/CityBaseInc/cityscrape/internal/log"
	"github.com/CityBaseInc/cityscrape/internal/pipeline"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a site within its limiting domain",
		Long: `Crawl starts at a URL and follows links inside the limiting domain until
no URL is left, the page budget is filled, or the crawl is interrupted.

Every reached page is recorded with its department, title, action button
and navigation panel probes, email addresses, PDF links, outside-domain
links and body words. Dead links and unreadable pages are listed
separately. Interrupting the crawl (Ctrl-C) keeps the partial result and
stores the remaining queue so the crawl can be resumed.

Examples:
  # Crawl an ad hoc site, domain derived from the URL
  cityscrape crawl --url https://www.chicago.gov/city/en.html

  # Crawl a preset from .cityscrape.yaml
  cityscrape crawl --site chicago

  # Crawl two presets concurrently and export CSV files
  cityscrape crawl --site chicago --site indianapolis -f text,csv -O ./out

  # Resume a stored session
  cityscrape crawl --site chicago --resume 3f8a2c1e-...

  # Resume from exported queue and visited files
  cityscrape crawl --site chicago --queue-file out/chicago_queue.csv --visited-file out/chicago_visited.csv`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()

	// Target
	f.StringP("url", "u", "", "Start URL")
	f.StringP("domain", "d", "", "Limiting domain (default: host of the start URL without www.)")
	f.StringSliceP("site", "s", nil, "Site preset from the configuration file (repeatable)")
	f.StringP("config", "c", "", "Configuration file path (default: .cityscrape.yaml)")

	// Admission
	f.String("required-path", "", "Substring every followed URL must contain")
	f.StringSlice("ignore", nil, "Substrings that exclude a URL from being followed")
	f.StringSlice("extensions", nil, `Followed path extensions (default: "", .html, .aspx)`)
	f.Bool("legacy-resolve", false, "Treat scheme-less hrefs like www.example.org/x as absolute")

	// Limits and politeness
	f.IntP("budget", "n", config.DefaultPageBudget, "Page budget, 0 for no limit")
	f.IntP("workers", "w", config.DefaultWorkers, "Concurrent fetch workers")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Per-request timeout")
	f.Duration("delay", config.DefaultDelay, "Minimum delay between requests to one host")
	f.Float64("rate", 0, "Requests per second per host, 0 for no limit")
	f.Int64("max-body-size", config.DefaultMaxBodySize, "Maximum response body size in bytes")
	f.Int("max-redirects", config.DefaultMaxRedirects, "Redirects followed before a URL is dead")

	// Transport
	f.String("user-agent", config.DefaultUserAgent, "User-Agent header")
	f.String("cookie", "", `Cookie header, "name=value; name2=value2"`)
	f.StringArrayP("header", "H", nil, `Extra request header "Name: value" (repeatable)`)
	f.String("proxy", "", "Proxy URL (http, https, socks5)")

	// Extraction
	f.String("link-section", "", "CSS class of the div links are taken from")
	f.StringSlice("text-selector", nil, "CSS selectors whose text replaces paragraph text")
	f.StringSlice("omit-word", nil, "Words dropped from body words")
	f.Bool("stem", false, "Stem body words")
	f.Int("top-words", config.DefaultTopWords, "Size of the top words table, 0 to disable")

	// Resume
	f.String("resume", "", "Resume the frontier of a stored session")
	f.String("visited-file", "", "File of already visited URLs")
	f.String("queue-file", "", "File of URLs to crawl instead of the start URL")
	f.StringSlice("skip", nil, "Drop resumed URLs containing any of these substrings")

	// Output
	f.StringSliceP("format", "f", []string{config.FormatText}, "Outputs: text, json, markdown, csv, xlsx")
	f.StringP("output", "o", "", "Write the report to a file instead of stdout")
	f.StringP("output-dir", "O", ".", "Directory for csv and xlsx exports")
	f.String("delimiter", config.DefaultCSVDelimiter, `CSV delimiter, a single character or \t`)
	f.Bool("no-db", false, "Do not store the session in the database")
	f.String("db-dir", "", "Database directory (default: XDG data directory)")
	f.IntP("batch", "b", config.DefaultBatchSize, "Site presets crawled concurrently")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd)
	slog.SetDefault(logger)

	file, err := loadConfigFile(cmd)
	if err != nil {
		return asConfigError(err)
	}

	sites, err := cmd.Flags().GetStringSlice("site")
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		sites = []string{""}
	}

	// Build every config up front so a typo fails before any crawl starts.
	configs := make(map[string]*config.Config, len(sites))
	for _, site := range sites {
		cfg, err := buildConfig(cmd, file, site)
		if err != nil {
			return asConfigError(err)
		}
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			return asConfigError(err)
		}
		configs[site] = cfg
	}
	first := configs[sites[0]]

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *database.CrawlDB
	if first.SaveToDB {
		db, err = database.Open(filepath.Dir(first.DatabasePath()), database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck
		logger.Info("database opened", "path", db.Path())
	}

	out, closeOut, err := reportOutput(cmd, first.ReportFile)
	if err != nil {
		return err
	}
	defer closeOut()

	env := pipeline.Env{
		DB:      db,
		Output:  &lockedWriter{w: out},
		Version: getVersion(),
		Logger:  logger,
	}

	if len(sites) == 1 {
		return runSingleCrawl(ctx, cmd, first, env)
	}
	return runBatchCrawl(ctx, cmd, sites, configs, first.BatchSize, env)
}

func runSingleCrawl(ctx context.Context, cmd *cobra.Command, cfg *config.Config, env pipeline.Env) error {
	job, err := pipeline.NewJob(ctx, cfg, env)
	if err != nil {
		return asConfigError(err)
	}
	err = job.Run(ctx)
	if errors.Is(err, context.Canceled) {
		printResumeHint(cmd.ErrOrStderr(), job, env.DB != nil)
		return nil
	}
	return err
}

func runBatchCrawl(ctx context.Context, cmd *cobra.Command, sites []string, configs map[string]*config.Config, concurrency int, env pipeline.Env) error {
	bp := pipeline.NewBatchProcessor(
		func(ctx context.Context, site string) (*pipeline.Job, error) {
			return pipeline.NewJob(ctx, configs[site], env)
		},
		pipeline.WithConcurrency(concurrency),
		pipeline.WithBatchLogger(env.Logger),
	)

	results, err := bp.ProcessBatch(ctx, sites)
	errOut := cmd.ErrOrStderr()
	var failed []error
	for _, res := range results {
		switch {
		case res.Err == nil:
			fmt.Fprintf(errOut, "[ok]     %s: %d pages, %d dead links\n", res.Site, len(res.Report.Pages), len(res.Report.DeadLinks))
		case errors.Is(res.Err, context.Canceled) && res.Report != nil:
			fmt.Fprintf(errOut, "[partial] %s: %d pages, %d URLs left\n", res.Site, len(res.Report.Pages), len(res.Report.Pending))
		default:
			fmt.Fprintf(errOut, "[failed] %s: %v\n", res.Site, res.Err)
			if !errors.Is(res.Err, context.Canceled) {
				failed = append(failed, fmt.Errorf("%s: %w", res.Site, res.Err))
			}
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(append(failed, err)...)
}

func printResumeHint(w io.Writer, job *pipeline.Job, stored bool) {
	r := job.Report
	fmt.Fprintf(w, "\nCrawl interrupted: %d pages recorded, %d URLs left in the queue.\n", len(r.Pages), len(r.Pending))
	if stored && len(r.Pending) > 0 {
		fmt.Fprintf(w, "Resume with: cityscrape crawl --resume %s\n", r.SessionID)
	}
}

// setupLogger builds the redacting stderr logger from the global flags.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getBoolFlag(cmd, "verbose")
	if getBoolFlag(cmd, "log-json") {
		return log.NewJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return log.NewLogger(cmd.ErrOrStderr(), verbose)
}

// getBoolFlag reads a flag from the command or the root persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// loadConfigFile loads the configuration file, or returns an empty File
// when none exists and none was asked for.
func loadConfigFile(cmd *cobra.Command) (*config.File, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	found := config.FindConfigFile(path)
	switch {
	case found != "":
		return config.LoadConfigFile(found)
	case path != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	default:
		return &config.File{Sites: map[string]config.SiteConfig{}}, nil
	}
}

// buildConfig layers defaults, the site preset and the changed flags.
func buildConfig(cmd *cobra.Command, file *config.File, site string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.SaveToDB = true
	cfg.OutputDir = "."

	if site != "" {
		s, err := file.Site(site)
		if err != nil {
			return nil, err
		}
		cfg.ApplySite(site, s)
	} else {
		cfg.ApplySite("", file.Defaults)
	}

	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(f *pflag.FlagSet, cfg *config.Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if f.Changed(name) {
			v, err := f.GetString(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	slice := func(name string, dst *[]string) {
		if f.Changed(name) {
			v, err := f.GetStringSlice(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if f.Changed(name) {
			v, err := f.GetInt(name)
			errs = append(errs, err)
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if f.Changed(name) {
			v, err := f.GetBool(name)
			errs = append(errs, err)
			*dst = v
		}
	}

	str("url", &cfg.StartURL)
	str("domain", &cfg.Domain)
	str("required-path", &cfg.RequiredPath)
	slice("ignore", &cfg.Ignore)
	slice("extensions", &cfg.AllowedExtensions)
	boolean("legacy-resolve", &cfg.LegacyResolve)
	integer("budget", &cfg.PageBudget)
	integer("workers", &cfg.Workers)
	integer("max-redirects", &cfg.MaxRedirects)
	str("user-agent", &cfg.UserAgent)
	str("cookie", &cfg.Cookie)
	str("proxy", &cfg.ProxyURL)
	str("link-section", &cfg.LinkSection)
	slice("text-selector", &cfg.TextSelectors)
	slice("omit-word", &cfg.OmitWords)
	boolean("stem", &cfg.StemWords)
	integer("top-words", &cfg.TopWords)
	str("resume", &cfg.ResumeSession)
	str("visited-file", &cfg.VisitedFile)
	str("queue-file", &cfg.QueueFile)
	slice("skip", &cfg.SkipSubstrings)
	slice("format", &cfg.OutputFormats)
	str("output", &cfg.ReportFile)
	str("output-dir", &cfg.OutputDir)
	str("delimiter", &cfg.CSVDelimiter)
	str("db-dir", &cfg.DBDir)
	integer("batch", &cfg.BatchSize)

	if f.Changed("timeout") {
		v, err := f.GetDuration("timeout")
		errs = append(errs, err)
		cfg.Timeout = v
	}
	if f.Changed("delay") {
		v, err := f.GetDuration("delay")
		errs = append(errs, err)
		cfg.Delay = v
	}
	if f.Changed("rate") {
		v, err := f.GetFloat64("rate")
		errs = append(errs, err)
		cfg.RatePerSecond = v
	}
	if f.Changed("max-body-size") {
		v, err := f.GetInt64("max-body-size")
		errs = append(errs, err)
		cfg.MaxBodySize = v
	}
	if f.Changed("no-db") {
		v, err := f.GetBool("no-db")
		errs = append(errs, err)
		cfg.SaveToDB = !v
	}
	if f.Changed("header") {
		headers, err := f.GetStringArray("header")
		errs = append(errs, err)
		for _, h := range headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				errs = append(errs, fmt.Errorf("invalid header %q: want \"Name: value\"", h))
				continue
			}
			if cfg.Headers == nil {
				cfg.Headers = make(map[string]string)
			}
			cfg.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	if v, err := f.GetBool("verbose"); err == nil {
		cfg.Verbose = v
	}
	return errors.Join(errs...)
}

// reportOutput returns where stdout reports go. Report files are created
// with owner-only permissions.
func reportOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil //nolint:errcheck,gosec // report already written
}

// lockedWriter serializes reports written by concurrent site crawls.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
