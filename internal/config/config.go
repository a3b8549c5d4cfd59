// Package config loads the YAML configuration a walk run is driven
// by: which providers to mirror, how the HTTP fetcher behaves, and
// the validation/storage policy applied to every document retrieved.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for an advisory-walker run.
type Config struct {
	Store      StoreConfig                `yaml:"store"`
	Fetcher    FetcherConfig               `yaml:"fetcher"`
	Validation ValidationConfig            `yaml:"validation"`
	Walk       WalkConfig                  `yaml:"walk"`
	Providers  map[string]ProviderConfig   `yaml:"providers"`
}

// StoreConfig controls where and how retrieved documents land on disk.
type StoreConfig struct {
	BaseDir         string `yaml:"base_dir"`
	NoTimestamps    bool   `yaml:"no_timestamps"`
	NoXattrs        bool   `yaml:"no_xattrs"`
	SinceFile       string `yaml:"since_file"`
	SinceFileOffset string `yaml:"since_file_offset"` // parsed with time.ParseDuration
}

// FetcherConfig controls the shared HTTP client every HTTP source uses.
type FetcherConfig struct {
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	RetryCount      int    `yaml:"retry_count"`
	InsecureSkipTLS bool   `yaml:"insecure_skip_tls"`
	UserAgent       string `yaml:"user_agent"`
}

// ValidationConfig controls the signature/digest checking policy.
type ValidationConfig struct {
	RequireSignature bool   `yaml:"require_signature"`
	ValidationDate   string `yaml:"validation_date"` // RFC-3339, empty means "now"
}

// WalkConfig controls how the walk itself is driven.
type WalkConfig struct {
	ConcurrencyLimit int      `yaml:"concurrency_limit"` // 0 or 1 means sequential
	Distributions    []string `yaml:"distributions"`     // allowlist of directory/feed URLs; empty means all
}

// ProviderConfig is a single provider's input: either a well-known
// provider domain, an explicit metadata URL, or a path to a
// previously mirrored tree.
type ProviderConfig struct {
	Input string `yaml:"input"`
	Since string `yaml:"since"` // RFC-3339, overrides the since file's watermark when set
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			BaseDir:         "./mirror",
			SinceFile:       "./mirror/.since",
			SinceFileOffset: "10m",
		},
		Fetcher: FetcherConfig{
			TimeoutSeconds: 60,
			RetryCount:     3,
			UserAgent:      "advisory-walker/1.0",
		},
		Validation: ValidationConfig{
			RequireSignature: false,
		},
		Walk: WalkConfig{
			ConcurrencyLimit: 1,
		},
		Providers: make(map[string]ProviderConfig),
	}
}

// Load reads a config file from the given path, layering it over
// DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations.
func FindConfigFile() (string, error) {
	searchPaths := []string{
		"advisory-walker.yaml",
		"/etc/advisory-walker/config.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(home, ".config", "advisory-walker", "config.yaml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPaths)
}

// SinceFileOffsetDuration parses SinceFileOffset, defaulting to zero
// on an empty or invalid value rather than failing the whole walk
// over a cosmetic config mistake.
func (c *Config) SinceFileOffsetDuration() time.Duration {
	if c.Store.SinceFileOffset == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Store.SinceFileOffset)
	if err != nil {
		return 0
	}
	return d
}

// ValidationDateUnix parses Validation.ValidationDate, returning 0
// ("now", resolved by the caller) when unset or invalid.
func (c *Config) ValidationDateUnix() int64 {
	if c.Validation.ValidationDate == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, c.Validation.ValidationDate)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// ProviderDataDir returns the mirror directory for a named provider,
// nested under the shared store base directory.
func (c *Config) ProviderDataDir(name string) string {
	return filepath.Join(c.Store.BaseDir, name)
}
