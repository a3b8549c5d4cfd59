package main

import (
	"context"
	"fmt"
	"time"

	"github.com/opslane/advisory-walker/internal/fetcher"
	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/source"
	"github.com/opslane/advisory-walker/internal/walker"
	"github.com/spf13/cobra"
)

var (
	walkProvider string
	walkInput    string
)

func newWalkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walk",
		Short: "List every document a provider's distributions would discover",
		Long: `walk drives discovery only: it loads the provider's metadata and
lists every document each distribution's index produces, without
retrieving, validating, or storing anything. Useful for diagnosing a
provider's feed layout before running mirror or validate.`,
		Example: `  advwalker walk --provider example
  advwalker walk --input https://example.com/.well-known/csaf/provider-metadata.json`,
		RunE: walkRun,
	}

	cmd.Flags().StringVar(&walkProvider, "provider", "", "named provider from the config file")
	cmd.Flags().StringVar(&walkInput, "input", "", "provider domain, metadata URL, or mirrored tree path (overrides --provider's configured input)")

	return cmd
}

func walkRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	input := walkInput
	if input == "" && walkProvider != "" {
		pc, ok := globalCfg.Providers[walkProvider]
		if !ok {
			return fmt.Errorf("provider %q not found in config", walkProvider)
		}
		input = pc.Input
	}
	if input == "" {
		return fmt.Errorf("one of --input or --provider is required")
	}

	f := fetcher.New(fetcher.Options{
		Timeout:         time.Duration(globalCfg.Fetcher.TimeoutSeconds) * time.Second,
		RetryCount:      globalCfg.Fetcher.RetryCount,
		InsecureSkipTLS: globalCfg.Fetcher.InsecureSkipTLS,
		UserAgent:       globalCfg.Fetcher.UserAgent,
	}, logger)

	src, err := source.Open(input, f, source.Options{})
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}

	lister := &listingVisitor{}
	w := walker.NewWalker(src)
	w.Logger = logger
	w.DistributionFilter = distributionFilter(globalCfg)

	if err := w.Walk(ctx, lister); err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}

	fmt.Printf("%d distribution(s), %d document(s)\n", lister.distributions, lister.documents)
	return nil
}

// listingVisitor is a DiscoveredVisitor that only prints, for the walk
// command's bare-discovery diagnostic mode.
type listingVisitor struct {
	distributions int
	documents     int
}

func (l *listingVisitor) VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error {
	l.distributions = len(metadata.Distributions)
	return nil
}

func (l *listingVisitor) VisitDiscovered(ctx context.Context, doc model.DiscoveredDoc) error {
	l.documents++
	fmt.Printf("%s\t%s\n", doc.Modified.Format(time.RFC3339), doc.URL.String())
	return nil
}
