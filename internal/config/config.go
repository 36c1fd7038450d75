// Package config handles the user configuration stored in
// ~/.scopus_search/config.yml and its environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/dadope/scopus-search/internal/author"
	"github.com/dadope/scopus-search/internal/scopus"
)

const (
	// HomeDir is the directory name under the user's home.
	HomeDir = ".scopus_search"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// DBFile is the cache database path relative to the home directory.
	DBFile = "resources/database.db"

	// HomeEnv overrides the home directory.
	HomeEnv = "SCOPUS_SEARCH_HOME"
	// EnvPrefix prefixes every environment override, e.g. SCOPUS_API_KEY.
	EnvPrefix = "SCOPUS"
)

// Defaults for optional settings.
const (
	DefaultBaseURL      = scopus.BaseURL
	DefaultOutputFormat = "json"
	DefaultNameFormat   = author.DefaultNameFormat
	DefaultMaxPages     = scopus.DefaultMaxPages
	DefaultTimeout      = scopus.DefaultTimeout
)

// ErrMissingAPIKey is returned by RequireAPIKey when no key is configured.
var ErrMissingAPIKey = errors.New("scopus API key not configured")

// Config holds every user setting. Fields are read from the YAML file and
// then overridden by SCOPUS_* environment variables.
type Config struct {
	APIKey            string        `yaml:"api_key,omitempty" json:"api_key,omitempty" envconfig:"API_KEY"`
	DBPath            string        `yaml:"db_path,omitempty" json:"db_path" envconfig:"DB_PATH"`
	BaseURL           string        `yaml:"base_url,omitempty" json:"base_url" envconfig:"BASE_URL"`
	OutputFormat      string        `yaml:"output_format,omitempty" json:"output_format" envconfig:"OUTPUT_FORMAT"`
	NameInputFormat   string        `yaml:"name_input_format,omitempty" json:"name_input_format" envconfig:"NAME_INPUT_FORMAT"`
	NameOutputFormat  string        `yaml:"name_output_format,omitempty" json:"name_output_format" envconfig:"NAME_OUTPUT_FORMAT"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty" json:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	MaxPages          int           `yaml:"max_pages,omitempty" json:"max_pages" envconfig:"MAX_PAGES"`
	Timeout           time.Duration `yaml:"timeout,omitempty" json:"timeout" envconfig:"TIMEOUT"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DBPath:           filepath.Join(Home(), DBFile),
		BaseURL:          DefaultBaseURL,
		OutputFormat:     DefaultOutputFormat,
		NameInputFormat:  DefaultNameFormat,
		NameOutputFormat: DefaultNameFormat,
		MaxPages:         DefaultMaxPages,
		Timeout:          DefaultTimeout,
	}
}

// Home returns the application directory. Respects SCOPUS_SEARCH_HOME,
// defaults to ~/.scopus_search.
func Home() string {
	if h := os.Getenv(HomeEnv); h != "" {
		return ExpandTilde(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return HomeDir
	}
	return filepath.Join(home, HomeDir)
}

// Path returns the path to the config file.
func Path() string {
	return filepath.Join(Home(), ConfigFile)
}

// Load reads the config file at path (Path() when empty) over the defaults
// and applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.DBPath = ExpandTilde(cfg.DBPath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %v", c.RequestsPerSecond)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must not be negative, got %d", c.MaxPages)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	return nil
}

// RequireAPIKey returns ErrMissingAPIKey with setup instructions when no
// key is configured.
func (c *Config) RequireAPIKey() error {
	if c.APIKey != "" {
		return nil
	}
	return fmt.Errorf("%w\n\n%s", ErrMissingAPIKey, HelpfulConfigMessage())
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if len(c.APIKey) > 4 {
		c.APIKey = strings.Repeat("*", len(c.APIKey)-4) + c.APIKey[len(c.APIKey)-4:]
	} else if c.APIKey != "" {
		c.APIKey = "****"
	}
	return c
}

// Save writes cfg to path (Path() when empty), creating the directory.
func Save(path string, cfg *Config) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ExpandTilde replaces a leading ~ with the user's home directory.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// HelpfulConfigMessage explains how to configure an API key.
func HelpfulConfigMessage() string {
	configPath := Path()
	return fmt.Sprintf(`A Scopus API key is required. Get one at https://dev.elsevier.com/ and either:
  export SCOPUS_API_KEY=<key>
or store it in %s:
  scopus-search config init --api-key <key>`, configPath)
}
