package walker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/opslane/advisory-walker/internal/layout"
	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/openpgputil"
	"github.com/opslane/advisory-walker/internal/safety"
	"github.com/opslane/advisory-walker/internal/source"
)

// StoreOptions configures the Store visitor (spec §4.G).
type StoreOptions struct {
	NoTimestamps bool // disable mtime rewriting to the document's declared modification time
	NoXattrs     bool // disable persisting the ETag extended attribute
}

// StoreVisitor persists provider metadata, trusted keys, and document
// payloads into the canonical on-disk tree a FileSource later reads
// back. It implements both RetrievedVisitor and ValidatedVisitor —
// the mirror command stores every retrieved document regardless of
// validation outcome, while a strict validate-then-store pipeline can
// wire it downstream of the Validation stage instead.
type StoreVisitor struct {
	Base    string
	Source  source.Source // used only to resolve trusted keys' armoured bytes
	Options StoreOptions
}

// NewStoreVisitor builds a StoreVisitor rooted at base.
func NewStoreVisitor(base string, src source.Source, opts StoreOptions) *StoreVisitor {
	return &StoreVisitor{Base: base, Source: src, Options: opts}
}

func (v *StoreVisitor) VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error {
	if err := v.storeProviderMetadata(metadata); err != nil {
		return err
	}
	if err := v.prepareDistributions(metadata); err != nil {
		return err
	}
	return v.storeKeys(ctx, metadata)
}

func (v *StoreVisitor) VisitRetrieved(ctx context.Context, doc model.RetrievedDoc) error {
	return v.store(doc)
}

func (v *StoreVisitor) VisitValidated(ctx context.Context, doc model.ValidatedDoc) error {
	return v.store(doc.Retrieved)
}

func (v *StoreVisitor) prepareDistributions(metadata *model.ProviderMetadata) error {
	for _, dist := range metadata.Distributions {
		if dist.DirectoryURL != "" {
			if err := v.prepareDistributionDir(dist.DirectoryURL); err != nil {
				return err
			}
		}
		if dist.Rolie != nil {
			for _, feed := range dist.Rolie.Feeds {
				if err := v.prepareDistributionDir(feed.URL); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (v *StoreVisitor) prepareDistributionDir(rawURL string) error {
	path, err := layout.DistributionPath(v.Base, rawURL)
	if err != nil {
		return &model.StoreError{Kind: model.ErrFilenameDerivation, Err: err}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &model.StoreError{Kind: model.ErrStoreIO, Err: fmt.Errorf("creating distribution directory %s: %w", path, err)}
	}
	return nil
}

func (v *StoreVisitor) storeProviderMetadata(metadata *model.ProviderMetadata) error {
	metaDir := layout.MetadataDir(v.Base)
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return &model.StoreError{Kind: model.ErrStoreIO, Err: fmt.Errorf("creating metadata directory: %w", err)}
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return &model.StoreError{Kind: model.ErrSerialization, Err: err}
	}

	file := filepath.Join(metaDir, "provider-metadata.json")
	if err := writeFileAtomic(file, data, 0o644); err != nil {
		return &model.StoreError{Kind: model.ErrStoreIO, Err: err}
	}
	return nil
}

func (v *StoreVisitor) storeKeys(ctx context.Context, metadata *model.ProviderMetadata) error {
	if len(metadata.PublicOpenPGPKeys) == 0 {
		return nil
	}
	keysDir := layout.KeysDir(v.Base)
	if err := os.MkdirAll(keysDir, 0o755); err != nil {
		return &model.StoreError{Kind: model.ErrStoreIO, Err: fmt.Errorf("creating keys directory: %w", err)}
	}
	for _, k := range metadata.PublicOpenPGPKeys {
		if err := v.storeKey(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// storeKey resolves a key via Source and writes its armoured form
// under metadata/keys/<fingerprint>.txt. A key that fails to resolve
// (unreachable URL, bad armour) is skipped silently rather than
// aborting the whole store — one bad key
// reference shouldn't block mirroring every other distribution.
func (v *StoreVisitor) storeKey(ctx context.Context, k model.Key) error {
	if k.Fingerprint == "" || v.Source == nil {
		return nil
	}
	key, err := v.Source.LoadPublicKey(ctx, source.KeyRef{Fingerprint: k.Fingerprint, URL: k.URL})
	if err != nil {
		return nil
	}
	armored, err := key.Armor()
	if err != nil {
		return &model.StoreError{Kind: model.ErrSerialization, Err: err}
	}

	fingerprint := openpgputil.NormalizeFingerprint(k.Fingerprint)
	name := filepath.Join(layout.KeysDir(v.Base), fingerprint+".txt")
	if err := writeFileAtomic(name, []byte(armored), 0o644); err != nil {
		return &model.StoreError{Kind: model.ErrStoreIO, Err: err}
	}
	return nil
}

func (v *StoreVisitor) store(doc model.RetrievedDoc) error {
	if doc.Discovered.Context == nil || doc.Discovered.Context.BaseURL == nil {
		return &model.StoreError{Kind: model.ErrFilenameDerivation, Err: fmt.Errorf("document has no distribution context")}
	}

	distDir, err := layout.DistributionPath(v.Base, doc.Discovered.Context.BaseURL.String())
	if err != nil {
		return &model.StoreError{Kind: model.ErrFilenameDerivation, Err: err}
	}

	rel, err := makeRelative(doc.Discovered.Context.BaseURL, doc.Discovered.URL)
	if err != nil {
		return &model.StoreError{Kind: model.ErrFilenameDerivation, Err: err}
	}

	file, err := joinRelative(distDir, rel)
	if err != nil {
		return &model.StoreError{Kind: model.ErrFilenameDerivation, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return &model.StoreError{Kind: model.ErrStoreIO, Err: err}
	}
	if err := writeFileAtomic(file, doc.Data, 0o644); err != nil {
		return &model.StoreError{Kind: model.ErrStoreIO, Err: err}
	}

	if doc.Signature != nil {
		if err := writeFileAtomic(file+".asc", doc.Signature, 0o644); err != nil {
			return &model.StoreError{Kind: model.ErrStoreIO, Err: err}
		}
	}
	if doc.SHA256 != nil {
		line := []byte(doc.SHA256.Expected + "  " + filepath.Base(file) + "\n")
		if err := writeFileAtomic(file+".sha256", line, 0o644); err != nil {
			return &model.StoreError{Kind: model.ErrStoreIO, Err: err}
		}
	}
	if doc.SHA512 != nil {
		line := []byte(doc.SHA512.Expected + "  " + filepath.Base(file) + "\n")
		if err := writeFileAtomic(file+".sha512", line, 0o644); err != nil {
			return &model.StoreError{Kind: model.ErrStoreIO, Err: err}
		}
	}

	if !v.Options.NoTimestamps && !doc.Discovered.Modified.IsZero() {
		_ = os.Chtimes(file, doc.Discovered.Modified, doc.Discovered.Modified)
	}
	if !v.Options.NoXattrs && doc.Metadata.ETag != "" {
		_ = layout.WriteETagAttr(file, doc.Metadata.ETag)
	}

	return nil
}

// writeFileAtomic writes data to a temp file in the same directory as
// path, then renames it into place, so a concurrent reader (or a
// crash mid-write) never observes a partial file under the final name
// (spec §4.G, §5 cancellation).
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// makeRelative computes doc's path relative to base, mirroring the
// url crate's `make_relative`: doc must share base's scheme, host,
// and path prefix.
func makeRelative(base, doc *url.URL) (string, error) {
	baseStr := base.String()
	docStr := doc.String()
	if !strings.HasPrefix(docStr, baseStr) {
		return "", fmt.Errorf("document URL %q is not under distribution base %q", docStr, baseStr)
	}
	rel := strings.TrimPrefix(docStr[len(baseStr):], "/")
	if rel == "" {
		return "", fmt.Errorf("document URL %q equals its distribution base", docStr)
	}
	decoded, err := url.PathUnescape(rel)
	if err != nil {
		return "", fmt.Errorf("decoding relative path %q: %w", rel, err)
	}
	return decoded, nil
}

// joinRelative joins a URL-derived relative path onto a distribution
// directory, rejecting traversal outside of it.
func joinRelative(distDir, rel string) (string, error) {
	return safety.SafeJoinUnder(distDir, rel)
}
