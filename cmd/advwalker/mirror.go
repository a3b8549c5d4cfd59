package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/opslane/advisory-walker/internal/fetcher"
	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/runstore"
	"github.com/opslane/advisory-walker/internal/source"
	"github.com/opslane/advisory-walker/internal/walker"
	"github.com/spf13/cobra"
)

var (
	mirrorProvider string
	mirrorInput    string
	mirrorOut      string
	mirrorSince    string
)

func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Discover, retrieve, and store a provider's advisory feed",
		Long: `mirror walks a provider's distributions end to end: loads its
provider metadata, enumerates every distribution's index, retrieves
each document plus its signature and digest siblings, and stores them
under the configured base directory in a layout a later run (or the
validate/status commands) can read back directly.`,
		Example: `  advwalker mirror --provider example --out ./mirror
  advwalker mirror --input https://example.com/.well-known/csaf/provider-metadata.json --out ./mirror`,
		RunE: mirrorRun,
	}

	cmd.Flags().StringVar(&mirrorProvider, "provider", "", "named provider from the config file")
	cmd.Flags().StringVar(&mirrorInput, "input", "", "provider domain, metadata URL, or mirrored tree path (overrides --provider's configured input)")
	cmd.Flags().StringVar(&mirrorOut, "out", "", "mirror output directory (overrides config store.base_dir)")
	cmd.Flags().StringVar(&mirrorSince, "since", "", "RFC-3339 timestamp watermark (overrides the since file and config)")

	return cmd
}

func mirrorRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	input := mirrorInput
	if input == "" && mirrorProvider != "" {
		pc, ok := globalCfg.Providers[mirrorProvider]
		if !ok {
			return fmt.Errorf("provider %q not found in config", mirrorProvider)
		}
		input = pc.Input
	}
	if input == "" {
		return fmt.Errorf("one of --input or --provider is required")
	}

	base := mirrorOut
	if base == "" {
		base = globalCfg.Store.BaseDir
	}

	since, err := resolveSince(mirrorSince, mirrorProvider)
	if err != nil {
		return err
	}

	f := fetcher.New(fetcher.Options{
		Timeout:         time.Duration(globalCfg.Fetcher.TimeoutSeconds) * time.Second,
		RetryCount:      globalCfg.Fetcher.RetryCount,
		InsecureSkipTLS: globalCfg.Fetcher.InsecureSkipTLS,
		UserAgent:       globalCfg.Fetcher.UserAgent,
	}, logger)

	src, err := source.Open(input, f, source.Options{Since: since})
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}

	tally := &mirrorTally{}
	store := &tallyingStore{inner: walker.NewStoreVisitor(base, src, walker.StoreOptions{
		NoTimestamps: globalCfg.Store.NoTimestamps,
		NoXattrs:     globalCfg.Store.NoXattrs,
	}), tally: tally}
	retrieving := walker.NewRetrievingVisitor(src, store, logger)
	counting := &countingDiscovered{inner: retrieving, tally: tally}
	chain := walker.NewSkipExistingVisitor(base, since, counting, logger)

	w := walker.NewWalker(src)
	w.Logger = logger
	w.DistributionFilter = distributionFilter(globalCfg)

	runs, runErr := openRunStore(base)
	if runErr != nil {
		logger.Warn("run history unavailable", "error", runErr)
	}
	var run *runstore.WalkRun
	start := time.Now()
	if runs != nil {
		run = &runstore.WalkRun{Provider: mirrorProvider, Mode: "mirror", StartTime: start, Status: "running"}
		if err := runs.CreateWalkRun(run); err != nil {
			logger.Warn("failed to record walk run", "error", err)
		}
	}

	if globalCfg.Walk.ConcurrencyLimit > 1 {
		err = w.WalkParallel(ctx, globalCfg.Walk.ConcurrencyLimit, chain)
	} else {
		err = w.Walk(ctx, chain)
	}

	if runs != nil && run != nil {
		run.EndTime = time.Now()
		run.DocsDiscovered = int(tally.discovered.Load())
		run.DocsStored = int(tally.stored.Load())
		if err != nil {
			run.Status = "failed"
			run.ErrorMessage = err.Error()
		} else {
			run.Status = "success"
		}
		if uerr := runs.UpdateWalkRun(run); uerr != nil {
			logger.Warn("failed to update walk run", "error", uerr)
		}
		runs.Close()
	}

	if err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}

	sinceFile := globalCfg.Store.SinceFile
	if sinceFile != "" {
		if werr := walker.WriteSinceFile(sinceFile, start, globalCfg.SinceFileOffsetDuration()); werr != nil {
			logger.Warn("failed to update since file", "path", sinceFile, "error", werr)
		}
	}

	logger.Info("mirror complete", "provider", mirrorProvider, "input", input, "base_dir", base,
		"discovered", tally.discovered.Load(), "stored", tally.stored.Load(), "elapsed", time.Since(start))
	return nil
}

// mirrorTally counts documents as they pass through the visitor chain,
// for the run-history summary.
type mirrorTally struct {
	discovered atomic.Int64
	stored     atomic.Int64
}

// countingDiscovered counts every document the skip stage lets
// through, before retrieval is attempted.
type countingDiscovered struct {
	inner walker.DiscoveredVisitor
	tally *mirrorTally
}

func (c *countingDiscovered) VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error {
	return c.inner.VisitContext(ctx, metadata)
}

func (c *countingDiscovered) VisitDiscovered(ctx context.Context, doc model.DiscoveredDoc) error {
	c.tally.discovered.Add(1)
	return c.inner.VisitDiscovered(ctx, doc)
}

// tallyingStore counts every document actually written to disk.
type tallyingStore struct {
	inner *walker.StoreVisitor
	tally *mirrorTally
}

func (s *tallyingStore) VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error {
	return s.inner.VisitContext(ctx, metadata)
}

func (s *tallyingStore) VisitRetrieved(ctx context.Context, doc model.RetrievedDoc) error {
	if err := s.inner.VisitRetrieved(ctx, doc); err != nil {
		return err
	}
	s.tally.stored.Add(1)
	return nil
}

// openRunStore opens the run-history database nested under base,
// tolerating a base directory that doesn't exist yet.
func openRunStore(base string) (*runstore.Store, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return runstore.New(filepath.Join(base, "runs.db"), logger)
}

// resolveSince picks the effective watermark: an explicit --since flag
// wins, then the named provider's configured since, then the on-disk
// since file, then no watermark at all.
func resolveSince(flagValue, providerName string) (*time.Time, error) {
	if flagValue != "" {
		t, err := time.Parse(time.RFC3339, flagValue)
		if err != nil {
			return nil, fmt.Errorf("parsing --since: %w", err)
		}
		return &t, nil
	}

	if providerName != "" {
		if pc, ok := globalCfg.Providers[providerName]; ok && pc.Since != "" {
			t, err := time.Parse(time.RFC3339, pc.Since)
			if err != nil {
				return nil, fmt.Errorf("parsing provider %q since: %w", providerName, err)
			}
			return &t, nil
		}
	}

	if globalCfg.Store.SinceFile != "" {
		return walker.ReadSinceFile(globalCfg.Store.SinceFile)
	}

	return nil, nil
}
