package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opslane/advisory-walker/internal/fetcher"
	"github.com/opslane/advisory-walker/internal/layout"
	"github.com/opslane/advisory-walker/internal/openpgputil"
	"github.com/opslane/advisory-walker/internal/source"
	"github.com/spf13/cobra"
)

var (
	keysProvider string
	keysInput    string
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List or import a provider's trusted OpenPGP public keys",
	}

	cmd.PersistentFlags().StringVar(&keysProvider, "provider", "", "named provider from the config file")
	cmd.PersistentFlags().StringVar(&keysInput, "input", "", "provider domain, metadata URL, or mirrored tree path (overrides --provider's configured input)")

	cmd.AddCommand(newKeysListCmd(), newKeysImportCmd())
	return cmd
}

func keysResolveInput() (string, error) {
	input := keysInput
	if input == "" && keysProvider != "" {
		pc, ok := globalCfg.Providers[keysProvider]
		if !ok {
			return "", fmt.Errorf("provider %q not found in config", keysProvider)
		}
		input = pc.Input
	}
	if input == "" {
		return "", fmt.Errorf("one of --input or --provider is required")
	}
	return input, nil
}

func keysOpenSource(input string) (source.Source, error) {
	f := fetcher.New(fetcher.Options{
		Timeout:         time.Duration(globalCfg.Fetcher.TimeoutSeconds) * time.Second,
		RetryCount:      globalCfg.Fetcher.RetryCount,
		InsecureSkipTLS: globalCfg.Fetcher.InsecureSkipTLS,
		UserAgent:       globalCfg.Fetcher.UserAgent,
	}, logger)
	return source.Open(input, f, source.Options{})
}

func newKeysListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the fingerprints of every key a provider publishes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalCfg == nil {
				return fmt.Errorf("config not loaded")
			}
			input, err := keysResolveInput()
			if err != nil {
				return err
			}
			src, err := keysOpenSource(input)
			if err != nil {
				return fmt.Errorf("opening source: %w", err)
			}
			meta, err := src.LoadMetadata(context.Background())
			if err != nil {
				return fmt.Errorf("loading provider metadata: %w", err)
			}
			if len(meta.PublicOpenPGPKeys) == 0 {
				fmt.Println("no public keys published")
				return nil
			}
			for _, k := range meta.PublicOpenPGPKeys {
				fmt.Printf("%s\t%s\n", k.Fingerprint, k.URL)
			}
			return nil
		},
	}
	return cmd
}

func newKeysImportCmd() *cobra.Command {
	var into string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Fetch and save a provider's trusted keys as armoured .txt files",
		Long: `import resolves every key a provider's metadata references and
writes it under <into>/<fingerprint>.txt in the same layout the mirror
command's Store visitor uses, so a subsequent validate run (or a
FileSource reload) can find them without re-fetching.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalCfg == nil {
				return fmt.Errorf("config not loaded")
			}
			input, err := keysResolveInput()
			if err != nil {
				return err
			}
			src, err := keysOpenSource(input)
			if err != nil {
				return fmt.Errorf("opening source: %w", err)
			}

			dest := into
			if dest == "" {
				dest = layout.KeysDir(globalCfg.Store.BaseDir)
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dest, err)
			}

			ctx := context.Background()
			meta, err := src.LoadMetadata(ctx)
			if err != nil {
				return fmt.Errorf("loading provider metadata: %w", err)
			}

			imported := 0
			for _, k := range meta.PublicOpenPGPKeys {
				key, err := src.LoadPublicKey(ctx, source.KeyRef{Fingerprint: k.Fingerprint, URL: k.URL})
				if err != nil {
					logger.Warn("failed to import key", "fingerprint", k.Fingerprint, "error", err)
					continue
				}
				armored, err := key.Armor()
				if err != nil {
					logger.Warn("failed to armor key", "fingerprint", k.Fingerprint, "error", err)
					continue
				}
				name := filepath.Join(dest, openpgputil.NormalizeFingerprint(k.Fingerprint)+".txt")
				if err := os.WriteFile(name, []byte(armored), 0o644); err != nil {
					return fmt.Errorf("writing %s: %w", name, err)
				}
				imported++
			}
			fmt.Printf("imported %d of %d key(s) into %s\n", imported, len(meta.PublicOpenPGPKeys), dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&into, "into", "", "destination directory (defaults to <base-dir>/metadata/keys)")
	return cmd
}
