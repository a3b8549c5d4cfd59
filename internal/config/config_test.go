package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.BaseDir != "./mirror" {
		t.Errorf("Store.BaseDir = %q, want %q", cfg.Store.BaseDir, "./mirror")
	}
	if cfg.Store.SinceFileOffset != "10m" {
		t.Errorf("Store.SinceFileOffset = %q, want %q", cfg.Store.SinceFileOffset, "10m")
	}
	if cfg.Fetcher.RetryCount != 3 {
		t.Errorf("Fetcher.RetryCount = %d, want 3", cfg.Fetcher.RetryCount)
	}
	if cfg.Fetcher.TimeoutSeconds != 60 {
		t.Errorf("Fetcher.TimeoutSeconds = %d, want 60", cfg.Fetcher.TimeoutSeconds)
	}
	if cfg.Validation.RequireSignature {
		t.Errorf("Validation.RequireSignature = true, want false")
	}
	if cfg.Walk.ConcurrencyLimit != 1 {
		t.Errorf("Walk.ConcurrencyLimit = %d, want 1", cfg.Walk.ConcurrencyLimit)
	}
	if cfg.Providers == nil {
		t.Errorf("Providers = nil, want non-nil map")
	}
	if len(cfg.Providers) != 0 {
		t.Errorf("Providers length = %d, want 0", len(cfg.Providers))
	}
}

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "advisory-walker.yaml")

	configContent := `
store:
  base_dir: "/custom/mirror"
  no_timestamps: true
  since_file: "/custom/mirror/.since"
  since_file_offset: "5m"
fetcher:
  timeout_seconds: 30
  retry_count: 5
  insecure_skip_tls: true
validation:
  require_signature: true
  validation_date: "2026-01-01T00:00:00Z"
walk:
  concurrency_limit: 8
providers:
  example:
    input: "https://example.com/.well-known/csaf/provider-metadata.json"
    since: "2025-01-01T00:00:00Z"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Store.BaseDir != "/custom/mirror" {
		t.Errorf("Store.BaseDir = %q, want %q", cfg.Store.BaseDir, "/custom/mirror")
	}
	if !cfg.Store.NoTimestamps {
		t.Errorf("Store.NoTimestamps = false, want true")
	}
	if cfg.Fetcher.TimeoutSeconds != 30 {
		t.Errorf("Fetcher.TimeoutSeconds = %d, want 30", cfg.Fetcher.TimeoutSeconds)
	}
	if cfg.Fetcher.RetryCount != 5 {
		t.Errorf("Fetcher.RetryCount = %d, want 5", cfg.Fetcher.RetryCount)
	}
	if !cfg.Fetcher.InsecureSkipTLS {
		t.Errorf("Fetcher.InsecureSkipTLS = false, want true")
	}
	if !cfg.Validation.RequireSignature {
		t.Errorf("Validation.RequireSignature = false, want true")
	}
	if cfg.Walk.ConcurrencyLimit != 8 {
		t.Errorf("Walk.ConcurrencyLimit = %d, want 8", cfg.Walk.ConcurrencyLimit)
	}

	provider, ok := cfg.Providers["example"]
	if !ok {
		t.Fatal("example provider not found")
	}
	if provider.Input != "https://example.com/.well-known/csaf/provider-metadata.json" {
		t.Errorf("provider.Input = %q", provider.Input)
	}
	if provider.Since != "2025-01-01T00:00:00Z" {
		t.Errorf("provider.Since = %q", provider.Since)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "invalid.yaml")

	invalidContent := `
store:
  base_dir: "/mirror"
  invalid: [unclosed bracket
`

	if err := os.WriteFile(configFile, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configFile)
	if err == nil {
		t.Error("Load() succeeded, want error for invalid YAML")
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Error("Load() succeeded, want error for nonexistent file")
	}
}

func TestFindConfigFileNotFound(t *testing.T) {
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	tempDir := t.TempDir()
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})

	_, err = FindConfigFile()
	if err == nil {
		t.Error("FindConfigFile() succeeded, want error when no config exists")
	}
}

func TestFindConfigFileFound(t *testing.T) {
	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	tempDir := t.TempDir()
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(originalWd); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})

	configFile := filepath.Join(tempDir, "advisory-walker.yaml")
	if err := os.WriteFile(configFile, []byte("store:\n  base_dir: \"./mirror\""), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	found, err := FindConfigFile()
	if err != nil {
		t.Fatalf("FindConfigFile() failed: %v", err)
	}
	if found != "advisory-walker.yaml" {
		t.Errorf("FindConfigFile() = %q, want advisory-walker.yaml", found)
	}
}

func TestSinceFileOffsetDuration(t *testing.T) {
	tests := []struct {
		name   string
		offset string
		want   time.Duration
	}{
		{"empty", "", 0},
		{"invalid", "not-a-duration", 0},
		{"valid minutes", "10m", 10 * time.Minute},
		{"valid seconds", "30s", 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Store: StoreConfig{SinceFileOffset: tt.offset}}
			if got := cfg.SinceFileOffsetDuration(); got != tt.want {
				t.Errorf("SinceFileOffsetDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationDateUnix(t *testing.T) {
	cfg := &Config{Validation: ValidationConfig{}}
	if got := cfg.ValidationDateUnix(); got != 0 {
		t.Errorf("ValidationDateUnix() with empty date = %d, want 0", got)
	}

	cfg = &Config{Validation: ValidationConfig{ValidationDate: "not-a-date"}}
	if got := cfg.ValidationDateUnix(); got != 0 {
		t.Errorf("ValidationDateUnix() with invalid date = %d, want 0", got)
	}

	want, _ := time.Parse(time.RFC3339, "2026-01-01T00:00:00Z")
	cfg = &Config{Validation: ValidationConfig{ValidationDate: "2026-01-01T00:00:00Z"}}
	if got := cfg.ValidationDateUnix(); got != want.Unix() {
		t.Errorf("ValidationDateUnix() = %d, want %d", got, want.Unix())
	}
}

func TestProviderDataDir(t *testing.T) {
	tests := []struct {
		name    string
		baseDir string
		provider string
		want    string
	}{
		{"simple", "/var/lib/mirror", "example", "/var/lib/mirror/example"},
		{"trailing slash in base", "/var/lib/mirror/", "example", "/var/lib/mirror/example"},
		{"empty provider", "/var/lib/mirror", "", "/var/lib/mirror"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Store: StoreConfig{BaseDir: tt.baseDir}}
			got := cfg.ProviderDataDir(tt.provider)
			if got != tt.want {
				t.Errorf("ProviderDataDir(%q) = %q, want %q", tt.provider, got, tt.want)
			}
		})
	}
}
