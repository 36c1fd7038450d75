// Package main provides the scopus-search CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// Persistent flags shared by every command.
var (
	humanOutput bool
	verbose     bool
	dbPath      string
	apiKey      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors is set, so cobra errors (unknown flags, bad args) are printed here
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scopus-search",
	Short: "Incremental Scopus author and paper cache",
	Long: `scopus-search synchronizes the papers of Scopus authors into a local
SQLite cache and prints them as JSON, Markdown, CSV or BibTeX.

Authors are given by Scopus id or by name. The first run for an author
downloads the full paper list; later runs only fetch papers from the most
recent cached year onwards.

Settings are read from ~/.scopus_search/config.yml, a .env file in the
working directory and SCOPUS_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the cache database (overrides db_path)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Scopus API key (overrides api_key)")
	rootCmd.Version = Version
}
