// Package config provides configuration loading and validation for the CLI
// and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Defaults for matcher and server settings.
const (
	DefaultThreshold   = 0.6
	DefaultNgramBudget = 2 * time.Second
	DefaultPort        = 8080
	DefaultFormat      = "json"
)

// Environment variables read by ApplyEnv.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvTaxonomyPath = "SKILL_TAXONOMY_PATH"
	EnvThreshold    = "SKILL_THRESHOLD"
	EnvNgramBudget  = "SKILL_NGRAM_BUDGET"
	EnvPort         = "PORT"
)

// validFormats are the CLI output formats.
var validFormats = map[string]bool{"json": true, "html": true, "text": true}

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or come from CLI flags
// and the environment.
type Config struct {
	// Matching
	TaxonomyPath string  `json:"taxonomy_path,omitempty"` // JSON or YAML catalog; empty uses the embedded one
	Threshold    float64 `json:"threshold,omitempty"`     // minimum n-gram overlap ratio, in (0, 1]
	NgramBudget  string  `json:"ngram_budget,omitempty"`  // duration string, e.g. "2s"; "0" disables the budget

	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL; empty disables persistence
	TaxonomyDB  bool   `json:"taxonomy_db,omitempty"`  // load the catalog from the skills table

	// Server
	Port int `json:"port,omitempty"`

	// Behavior
	UseBrowser bool   `json:"use_browser,omitempty"` // Use headless browser for SPA job boards
	Verbose    bool   `json:"verbose,omitempty"`     // Print detailed debug information
	Format     string `json:"format,omitempty"`      // json, html or text
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Zero values are allowed; MergeWithDefaults fills them in.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("config error: 'threshold' must be in (0, 1], got %v", c.Threshold)
	}

	if c.NgramBudget != "" {
		d, err := time.ParseDuration(c.NgramBudget)
		if err != nil {
			return fmt.Errorf("config error: invalid 'ngram_budget': %w", err)
		}
		if d < 0 {
			return fmt.Errorf("config error: 'ngram_budget' must be non-negative")
		}
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535, got %d", c.Port)
	}

	if c.Format != "" && !validFormats[c.Format] {
		return fmt.Errorf("config error: unknown 'format' %q (want json, html or text)", c.Format)
	}

	if c.TaxonomyDB && c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'taxonomy_db' requires 'database_url'")
	}

	if c.TaxonomyPath != "" && !c.TaxonomyDB {
		if _, err := os.Stat(c.TaxonomyPath); os.IsNotExist(err) {
			return fmt.Errorf("config error: taxonomy file not found: %s", c.TaxonomyPath)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults, then from the built-in defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.TaxonomyPath == "" {
		result.TaxonomyPath = defaults.TaxonomyPath
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.NgramBudget == "" {
		result.NgramBudget = defaults.NgramBudget
	}
	if result.NgramBudget == "" {
		result.NgramBudget = DefaultNgramBudget.String()
	}
	if result.Format == "" {
		result.Format = defaults.Format
	}
	if result.Format == "" {
		result.Format = DefaultFormat
	}

	if result.Threshold == 0 {
		if defaults.Threshold > 0 {
			result.Threshold = defaults.Threshold
		} else {
			result.Threshold = DefaultThreshold
		}
	}
	if result.Port == 0 {
		if defaults.Port > 0 {
			result.Port = defaults.Port
		} else {
			result.Port = DefaultPort
		}
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv fills empty fields from the environment. Malformed numeric values
// are reported rather than ignored.
func (c *Config) ApplyEnv() error {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
	if c.TaxonomyPath == "" {
		c.TaxonomyPath = os.Getenv(EnvTaxonomyPath)
	}
	if c.NgramBudget == "" {
		c.NgramBudget = os.Getenv(EnvNgramBudget)
	}
	if c.Threshold == 0 {
		if v := os.Getenv(EnvThreshold); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", EnvThreshold, err)
			}
			c.Threshold = f
		}
	}
	if c.Port == 0 {
		if v := os.Getenv(EnvPort); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", EnvPort, err)
			}
			c.Port = p
		}
	}
	return nil
}

// NgramBudgetDuration parses NgramBudget. Empty means the default budget.
func (c *Config) NgramBudgetDuration() (time.Duration, error) {
	if c.NgramBudget == "" {
		return DefaultNgramBudget, nil
	}
	d, err := time.ParseDuration(c.NgramBudget)
	if err != nil {
		return 0, fmt.Errorf("invalid ngram budget %q: %w", c.NgramBudget, err)
	}
	return d, nil
}
