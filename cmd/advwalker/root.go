package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/opslane/advisory-walker/internal/config"
	"github.com/opslane/advisory-walker/internal/model"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath   string
	baseDir   string
	logLevel  string
	logFormat string
	quiet     bool
	globalCfg *config.Config
	logger    *slog.Logger
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advwalker",
		Short: "Walk, validate, and mirror machine-readable security advisory feeds",
		Long: `advwalker discovers, retrieves, validates, and mirrors provider-published
security advisory feeds (CSAF and similar ROLIE/directory-indexed
distributions). It supports two interchangeable sources: a provider's
HTTP endpoint, or a tree a previous run mirrored to disk.`,
		Example: `  advwalker mirror --provider example.com --out ./mirror
  advwalker validate --provider example.com --require-signature
  advwalker status --provider example.com`,
		Version: "0.1.0",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			if shouldSkipConfig(cmd.Name()) {
				return nil
			}

			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			if baseDir != "" {
				globalCfg.Store.BaseDir = baseDir
			}

			if !quiet {
				logger.Debug("config loaded", "path", cfgPath, "base_dir", globalCfg.Store.BaseDir)
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&baseDir, "base-dir", "", "override the mirror's base directory")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	cmd.AddCommand(
		newMirrorCmd(),
		newValidateCmd(),
		newStatusCmd(),
		newWalkCmd(),
		newKeysCmd(),
	)

	return cmd
}

func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// distributionFilter builds a walker.DistributionFilter from the
// configured allowlist of distribution URLs (spec §6
// "distribution_filter"). An empty allowlist passes everything, so a
// distribution rejected here never causes any network I/O (spec §4.C).
func distributionFilter(cfg *config.Config) func(*model.DistributionContext) bool {
	if cfg == nil || len(cfg.Walk.Distributions) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(cfg.Walk.Distributions))
	for _, u := range cfg.Walk.Distributions {
		allowed[u] = true
	}
	return func(dctx *model.DistributionContext) bool {
		return allowed[dctx.String()]
	}
}

func shouldSkipConfig(cmdName string) bool {
	skip := map[string]bool{"help": true, "version": true}
	return skip[cmdName]
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
