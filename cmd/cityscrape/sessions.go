package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/CityBaseInc/cityscrape/internal/config"
	"github.com/CityBaseInc/cityscrape/internal/database"
	"github.com/CityBaseInc/cityscrape/internal/model"
	"github.com/CityBaseInc/cityscrape/internal/pipeline"
)

// NewSessionsCmd creates the sessions command.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show and delete stored crawl sessions",
		Long: `Sessions lists the crawls stored in the database, newest first.

Examples:
  # List stored sessions
  cityscrape sessions

  # Print the report of a stored session
  cityscrape sessions show 3f8a2c1e-... -f markdown

  # Delete a stored session
  cityscrape sessions delete 3f8a2c1e-...`,
		Args: cobra.NoArgs,
		RunE: runListSessions,
	}
	cmd.PersistentFlags().String("db-dir", "", "Database directory (default: XDG data directory)")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the report of a stored session",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowSession,
	}
	show.Flags().StringSliceP("format", "f", []string{config.FormatText}, "Outputs: text, json, markdown")

	remove := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a stored session and its records",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteSession,
	}

	cmd.AddCommand(show, remove)
	return cmd
}

// errNoDatabase is returned when no crawl has been stored yet.
var errNoDatabase = errors.New("no database found")

// openDatabase opens the database named by the --db-dir flag. It does not
// create a database that does not exist yet.
func openDatabase(cmd *cobra.Command) (*database.CrawlDB, error) {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = config.XDGDataDir()
	}
	if _, err := os.Stat(filepath.Join(dir, database.FileName)); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", errNoDatabase, dir)
	}
	db, err := database.Open(dir, database.Options{EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func runListSessions(cmd *cobra.Command, _ []string) error {
	db, err := openDatabase(cmd)
	if errors.Is(err, errNoDatabase) {
		writeSessionList(cmd.OutOrStdout(), nil)
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	sessions, err := db.ListSessions(context.Background())
	if err != nil {
		return err
	}
	writeSessionList(cmd.OutOrStdout(), sessions)
	return nil
}

func writeSessionList(w io.Writer, sessions []database.SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No stored sessions found.")
		fmt.Fprintln(w, "\nUse 'cityscrape crawl' to crawl a site.")
		return
	}

	fmt.Fprintf(w, "Stored sessions (%d):\n\n", len(sessions))
	fmt.Fprintf(w, "  %-36s  %-16s  %-19s  %-14s  %7s  %5s  %6s\n",
		"ID", "Site", "Started", "Stop", "Pages", "Dead", "Queue")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 114))
	for _, s := range sessions {
		site := s.Site
		if site == "" {
			site = s.Domain
		}
		stop := s.StopReason
		if stop == "" {
			stop = "running"
		}
		fmt.Fprintf(w, "  %-36s  %-16s  %-19s  %-14s  %7s  %5d  %6d\n",
			s.ID,
			truncate(site, 16),
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			stop,
			humanize.Comma(int64(s.Diagnostics.PagesScraped)),
			s.Diagnostics.DeadLinks,
			s.Diagnostics.RemainingQueue,
		)
	}
	fmt.Fprintln(w, "\nUse 'cityscrape sessions show <id>' to print a report.")
	fmt.Fprintln(w, "Use 'cityscrape crawl --resume <id>' to continue a session with queued URLs.")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

func runShowSession(cmd *cobra.Command, args []string) error {
	formats, err := cmd.Flags().GetStringSlice("format")
	if err != nil {
		return err
	}
	cfg := config.NewConfig()
	cfg.OutputFormats = formats
	cfg.Normalize()
	for _, f := range cfg.OutputFormats {
		if f != config.FormatText && f != config.FormatJSON && f != config.FormatMarkdown {
			return asConfigError(fmt.Errorf("%w: %q", config.ErrUnknownOutputFormat, f))
		}
	}
	cfg.Verbose = getBoolFlag(cmd, "verbose")

	r, err := loadStoredReport(cmd, args[0])
	if err != nil {
		return err
	}
	w := pipeline.Writers(cfg, cmd.OutOrStdout(), getVersion())
	if w == nil {
		return nil
	}
	_, err = w.Write(r)
	return err
}

func loadStoredReport(cmd *cobra.Command, id string) (*model.CrawlReport, error) {
	db, err := openDatabase(cmd)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	r, err := db.LoadReport(context.Background(), id)
	if errors.Is(err, database.ErrSessionNotFound) {
		return nil, asConfigError(err)
	}
	return r, err
}

func runDeleteSession(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if err := db.DeleteSession(context.Background(), args[0]); err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return asConfigError(err)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}
