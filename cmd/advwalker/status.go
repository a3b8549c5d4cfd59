package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/opslane/advisory-walker/internal/runstore"
	"github.com/opslane/advisory-walker/internal/source"
	"github.com/opslane/advisory-walker/internal/walker"
	"github.com/spf13/cobra"
)

var (
	statusIn       string
	statusProvider string
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize a mirrored tree's provider metadata and distributions",
		Long: `status reads a previously mirrored tree's provider metadata (without
touching the network) and reports its distributions, trusted keys,
on-disk size, the configured since-file watermark, and the most recent
walk runs recorded in the tree's run-history database.`,
		Example: `  advwalker status --in ./mirror
  advwalker status --in ./mirror --provider example`,
		RunE: statusRun,
	}

	cmd.Flags().StringVar(&statusIn, "in", "", "mirrored tree path (defaults to config store.base_dir)")
	cmd.Flags().StringVar(&statusProvider, "provider", "", "filter recent walk runs to this provider")

	return cmd
}

func statusRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	base := statusIn
	if base == "" {
		base = globalCfg.Store.BaseDir
	}

	src, err := source.NewFileSource(base, source.FileOptions{})
	if err != nil {
		return fmt.Errorf("opening mirrored tree: %w", err)
	}

	metadata, err := src.LoadMetadata(ctx)
	if err != nil {
		return fmt.Errorf("reading provider metadata: %w", err)
	}

	bold := color.New(color.Bold)
	bold.Printf("Provider: %s\n", metadata.ID)
	fmt.Printf("Distributions: %d\n", len(metadata.Distributions))
	for i, dist := range metadata.Distributions {
		if dist.DirectoryURL != "" {
			fmt.Printf("  [%d] directory: %s\n", i, dist.DirectoryURL)
		}
		if dist.Rolie != nil {
			for _, feed := range dist.Rolie.Feeds {
				fmt.Printf("  [%d] feed:      %s\n", i, feed.URL)
			}
		}
	}
	fmt.Printf("Trusted keys: %d\n", len(metadata.PublicOpenPGPKeys))
	for _, k := range metadata.PublicOpenPGPKeys {
		fmt.Printf("  %s\n", k.Fingerprint)
	}

	if size, err := treeSize(base); err != nil {
		logger.Debug("failed to measure mirror size", "path", base, "error", err)
	} else {
		fmt.Printf("On-disk size: %s\n", humanize.Bytes(size))
	}

	if globalCfg.Store.SinceFile != "" {
		since, err := walker.ReadSinceFile(globalCfg.Store.SinceFile)
		if err != nil {
			logger.Warn("failed to read since file", "path", globalCfg.Store.SinceFile, "error", err)
		} else if since != nil {
			fmt.Printf("Since watermark: %s\n", since.Format("2006-01-02T15:04:05Z07:00"))
		} else {
			fmt.Printf("Since watermark: none\n")
		}
	}

	printRecentRuns(base, statusProvider)

	return nil
}

// treeSize sums the size of every regular file under base, for the
// status command's on-disk footprint summary.
func treeSize(base string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += uint64(info.Size())
		}
		return nil
	})
	return total, err
}

// printRecentRuns reports the last few walk runs recorded in the
// tree's run-history database, if one exists. A missing database is
// not an error — a tree mirrored without run history still has a
// valid status.
func printRecentRuns(base, provider string) {
	runs, err := runstore.New(filepath.Join(base, "runs.db"), logger)
	if err != nil {
		logger.Debug("run history unavailable", "error", err)
		return
	}
	defer runs.Close()

	if provider == "" {
		fmt.Println("Recent runs: (pass --provider to list)")
		return
	}

	history, err := runs.ListWalkRuns(provider, 5)
	if err != nil {
		logger.Debug("failed to list walk runs", "error", err)
		return
	}
	if len(history) == 0 {
		fmt.Println("Recent runs: none")
		return
	}

	fmt.Println("Recent runs:")
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	for _, run := range history {
		statusPrinter := green
		if run.Status != "success" {
			statusPrinter = red
		}
		fmt.Printf("  %s  %s  ", run.StartTime.Format("2006-01-02T15:04:05Z07:00"), run.Mode)
		statusPrinter.Printf("%s", run.Status)
		fmt.Printf("  discovered=%d stored=%d\n", run.DocsDiscovered, run.DocsStored)
	}
}
