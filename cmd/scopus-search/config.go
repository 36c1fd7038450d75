package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dadope/scopus-search/internal/config"
)

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
	Long: `Show or create the configuration file.

The file lives at ~/.scopus_search/config.yml (or $SCOPUS_SEARCH_HOME/config.yml).
Every key can be overridden with an environment variable, e.g. SCOPUS_API_KEY,
SCOPUS_DB_PATH or SCOPUS_OUTPUT_FORMAT.

Keys:
  api_key              Scopus API key (https://dev.elsevier.com/)
  db_path              Cache database path
  base_url             Elsevier API base URL
  output_format        json, markdown, csv or bibtex
  name_input_format    Format of name arguments, e.g. "{surname}, {given_name}"
  name_output_format   Format of output keys; may also use {scopus_id}
  requests_per_second  Request pacing; 0 disables it
  max_pages            Maximum search result pages per query
  timeout              HTTP timeout, e.g. 60s`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with the API key redacted",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	Long: `Write a config file with default values.

The global --api-key flag, when given, is stored in the file:
  scopus-search config init --api-key <key>`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	redacted := cfg.Redacted()

	if humanOutput {
		fmt.Printf("# %s\n", config.Path())
		return yaml.NewEncoder(os.Stdout).Encode(redacted)
	}
	return outputJSON(redacted)
}

// ConfigInitResponse is the response for config init.
type ConfigInitResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.Path()
	if _, err := os.Stat(path); err == nil && !configInitForce {
		exitWithError(ExitConfigError, "%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	cfg.APIKey = apiKey
	if err := config.Save(path, &cfg); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Wrote %s\n", path)
		if cfg.APIKey == "" {
			fmt.Println("No API key stored; set SCOPUS_API_KEY or rerun with --api-key.")
		}
		return nil
	}
	return outputJSON(ConfigInitResponse{Status: "created", Path: path})
}
