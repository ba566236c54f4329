package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/CityBaseInc/cityscrape/internal/config"
	"github.com/CityBaseInc/cityscrape/internal/crawler"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "cityscrape" {
			t.Errorf("expected use 'cityscrape', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if cmd.PersistentFlags().Lookup("log-json") == nil {
			t.Error("expected log-json flag")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		found := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			found[sub.Use] = true
		}
		for _, use := range []string{"crawl", "sessions", "export <session-id>", "init", "version"} {
			if !found[use] {
				t.Errorf("expected %q subcommand", use)
			}
		}
	})
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitOK},
		{name: "runtime error", err: errors.New("disk full"), want: exitError},
		{name: "config error", err: asConfigError(config.ErrNoStartURL), want: exitConfig},
		{name: "wrapped config error", err: fmt.Errorf("site: %w", asConfigError(errors.New("bad"))), want: exitConfig},
		{name: "invalid crawl configuration", err: &crawler.ConfigurationError{Field: "start URL", Reason: "empty"}, want: exitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAsConfigError(t *testing.T) {
	t.Parallel()

	if asConfigError(nil) != nil {
		t.Error("expected nil for nil error")
	}
	err := asConfigError(config.ErrUnknownSite)
	if !errors.Is(err, config.ErrUnknownSite) {
		t.Error("expected config error to unwrap to the cause")
	}
	if err.Error() != config.ErrUnknownSite.Error() {
		t.Errorf("expected message %q, got %q", config.ErrUnknownSite.Error(), err.Error())
	}
}
