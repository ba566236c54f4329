package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CityBaseInc/cityscrape/internal/config"
	"github.com/CityBaseInc/cityscrape/internal/report"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a stored session to CSV or XLSX",
		Long: `Export writes the records of a stored session to files.

CSV export writes one file per record kind: pages, deadlinks, failed,
queue and visited. The queue and visited files can be passed back to
'cityscrape crawl' with --queue-file and --visited-file.

Examples:
  # Export CSV files to the current directory
  cityscrape export 3f8a2c1e-...

  # Export a workbook and backtick-separated CSV files
  cityscrape export 3f8a2c1e-... -f csv,xlsx --delimiter '` + "`" + `' -O ./out`,
		Args: cobra.ExactArgs(1),
		RunE: runExportCmd,
	}

	cmd.Flags().StringSliceP("format", "f", []string{config.FormatCSV}, "Exports: csv, xlsx")
	cmd.Flags().StringP("output-dir", "O", ".", "Output directory")
	cmd.Flags().String("delimiter", config.DefaultCSVDelimiter, `CSV delimiter, a single character or \t`)
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")

	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	var err error
	if cfg.OutputFormats, err = cmd.Flags().GetStringSlice("format"); err != nil {
		return err
	}
	if cfg.OutputDir, err = cmd.Flags().GetString("output-dir"); err != nil {
		return err
	}
	if cfg.CSVDelimiter, err = cmd.Flags().GetString("delimiter"); err != nil {
		return err
	}
	cfg.Normalize()

	delim, err := cfg.Delimiter()
	if err != nil {
		return asConfigError(err)
	}
	for _, f := range cfg.OutputFormats {
		if f != config.FormatCSV && f != config.FormatXLSX {
			return asConfigError(fmt.Errorf("%w: %q", config.ErrUnknownOutputFormat, f))
		}
	}

	r, err := loadStoredReport(cmd, args[0])
	if err != nil {
		return err
	}

	exporter := report.NewExporter(report.ExportOptions{Dir: cfg.OutputDir, Site: r.Site, Delimiter: delim})
	out := cmd.OutOrStdout()
	if cfg.HasFormat(config.FormatCSV) {
		paths, err := exporter.ExportCSV(r)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(out, "Wrote %s\n", p)
		}
	}
	if cfg.HasFormat(config.FormatXLSX) {
		path, err := exporter.ExportXLSX(r)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return nil
}
