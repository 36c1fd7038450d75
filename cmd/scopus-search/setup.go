package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dadope/scopus-search/internal/config"
	"github.com/dadope/scopus-search/internal/logging"
	"github.com/dadope/scopus-search/internal/scopus"
	"github.com/dadope/scopus-search/internal/storage"
)

// mustLoadConfig loads the config file and applies the --db and --api-key
// overrides, exiting on failure.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if dbPath != "" {
		cfg.DBPath = config.ExpandTilde(dbPath)
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	return cfg
}

// mustNewLogger builds the stderr logger, exiting on failure.
func mustNewLogger() *zap.Logger {
	logger, err := logging.New(verbose)
	if err != nil {
		exitWithError(ExitError, "creating logger: %v", err)
	}
	return logger
}

// mustOpenDatabase opens the cache database, exiting on failure.
func mustOpenDatabase(cfg *config.Config) *storage.DB {
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		exitWithError(ExitDataError, "opening database %s: %v", cfg.DBPath, err)
	}
	return db
}

// mustNewClient creates a Scopus client from the config, exiting when no API
// key is configured.
func mustNewClient(cfg *config.Config) *scopus.Client {
	if err := cfg.RequireAPIKey(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return newClient(cfg)
}

func newClient(cfg *config.Config) *scopus.Client {
	return scopus.NewClient(
		scopus.WithAPIKey(cfg.APIKey),
		scopus.WithBaseURL(cfg.BaseURL),
		scopus.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		scopus.WithMaxPages(cfg.MaxPages),
		scopus.WithRequestsPerSecond(cfg.RequestsPerSecond),
	)
}
