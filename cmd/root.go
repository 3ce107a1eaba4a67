// Package cmd implements the polidisc CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/gwicho38/polidisc/internal/app"
	"github.com/gwicho38/polidisc/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	SupabaseURL string
	LogLevel    string
	Format      string
	Out         string
	Timeout     string
	Concurrency int
	Rate        float64
	Quiet       bool
	Verbose     bool
	Debug       bool
}

// rootCmd is the base command. Running `polidisc` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "polidisc",
	Short: "polidisc — politician financial-disclosure ingestion pipeline",
	Long: `polidisc scrapes, normalizes, and persists trading disclosures from
heterogeneous government sources (US House, US Senate, UK Parliament, EU
Parliament, QuiverQuant, and US state registries) into a local embedded
store.

Quick start:
  polidisc config init               # create a config.json
  polidisc run us_house               # run one ingestion pass
  polidisc schedule add-cron daily "Daily House ingest" "0 6 * * *" us_house
  polidisc store stats                # inspect the local store`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(config.Overrides{
		SupabaseURL: globalFlags.SupabaseURL,
		LogLevel:    globalFlags.LogLevel,
	})
	if err != nil {
		return nil, err
	}

	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Timeout != "" {
		if d, err2 := time.ParseDuration(globalFlags.Timeout); err2 == nil {
			cfg.Timeout = d
		}
	}
	if globalFlags.Concurrency > 0 {
		cfg.Concurrency = globalFlags.Concurrency
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}

	return app.New(cfg)
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.SupabaseURL, "supabase-url", "",
		"Supabase project URL (overrides env SUPABASE_URL and config.json)")
	pf.StringVar(&globalFlags.LogLevel, "log-level", "",
		"log level: DEBUG|INFO|WARN|ERROR|CRITICAL (overrides env LOG_LEVEL)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.IntVar(&globalFlags.Concurrency, "concurrency", 0,
		"max parallel orchestrator runs for `run --all` (default: 4)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max API requests per second per source (default: 1.0)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests and responses")
}
