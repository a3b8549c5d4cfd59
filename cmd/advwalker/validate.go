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
	validateProvider         string
	validateInput            string
	validateRequireSignature bool
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every document's signature and digests without storing anything",
		Long: `validate walks a provider the same way mirror does, but only reports
the outcome of each document's signature and digest checks — it never
writes to disk. Useful for auditing a provider's feed, or a mirrored
tree, without disturbing it.`,
		Example: `  advwalker validate --provider example
  advwalker validate --input ./mirror --require-signature`,
		RunE: validateRun,
	}

	cmd.Flags().StringVar(&validateProvider, "provider", "", "named provider from the config file")
	cmd.Flags().StringVar(&validateInput, "input", "", "provider domain, metadata URL, or mirrored tree path (overrides --provider's configured input)")
	cmd.Flags().BoolVar(&validateRequireSignature, "require-signature", false, "treat an unsigned document as a validation failure")

	return cmd
}

func validateRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	input := validateInput
	if input == "" && validateProvider != "" {
		pc, ok := globalCfg.Providers[validateProvider]
		if !ok {
			return fmt.Errorf("provider %q not found in config", validateProvider)
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

	requireSignature := validateRequireSignature || globalCfg.Validation.RequireSignature

	report := &validationReport{}
	validation := walker.NewValidationVisitor(src, report, walker.ValidationOptions{
		RequireSignature: requireSignature,
		ValidationDate:   globalCfg.ValidationDateUnix(),
	}, logger)
	retrieving := walker.NewRetrievingVisitor(src, validation, logger)

	w := walker.NewWalker(src)
	w.Logger = logger
	w.DistributionFilter = distributionFilter(globalCfg)

	if err := w.Walk(ctx, retrieving); err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}

	fmt.Printf("\n=== VALIDATION SUMMARY ===\n")
	fmt.Printf("Checked:  %d\n", report.total)
	fmt.Printf("OK:       %d\n", report.ok)
	fmt.Printf("Failed:   %d\n", report.total-report.ok)
	for outcome, count := range report.byOutcome {
		fmt.Printf("  %-17s %d\n", outcome, count)
	}

	if report.total-report.ok > 0 {
		return fmt.Errorf("%d document(s) failed validation", report.total-report.ok)
	}
	return nil
}

// validationReport is a ValidatedVisitor that tallies outcomes instead
// of storing anything, so the validate command can run read-only.
type validationReport struct {
	total     int
	ok        int
	byOutcome map[model.ValidationOutcome]int
}

func (r *validationReport) VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error {
	return nil
}

func (r *validationReport) VisitValidated(ctx context.Context, doc model.ValidatedDoc) error {
	r.total++
	if doc.OK() {
		r.ok++
		return nil
	}
	if r.byOutcome == nil {
		r.byOutcome = make(map[model.ValidationOutcome]int)
	}
	r.byOutcome[doc.Err.Outcome]++
	logger.Warn("validation failed", "url", doc.Retrieved.Discovered.URL, "outcome", doc.Err.Outcome, "error", doc.Err)
	return nil
}
