package source

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opslane/advisory-walker/internal/layout"
	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/openpgputil"
)

// FileOptions configures a FileSource.
type FileOptions struct {
	Since *time.Time
}

// FileSource is the local filesystem Source backend. It reads exactly
// the tree layout the Store visitor writes (spec §4.A.2), so a prior
// run's output becomes the next run's input.
type FileSource struct {
	base    string // absolute, canonicalised
	options FileOptions
}

// NewFileSource builds a FileSource rooted at base.
func NewFileSource(base string, opts FileOptions) (*FileSource, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolving base path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = abs
		} else {
			return nil, fmt.Errorf("canonicalising base path: %w", err)
		}
	}
	return &FileSource{base: resolved, options: opts}, nil
}

func (s *FileSource) LoadMetadata(ctx context.Context) (*model.ProviderMetadata, error) {
	metaPath := filepath.Join(s.base, layout.DirMetadata, "provider-metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, model.NewSourceError(model.ErrIO, fmt.Errorf("reading stored provider metadata: %w", err))
	}

	var meta model.ProviderMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, model.NewSourceError(model.ErrInvalidJSON, err)
	}

	keys, err := s.scanKeys()
	if err != nil {
		return nil, model.NewSourceError(model.ErrIO, err)
	}
	meta.PublicOpenPGPKeys = keys

	// Rewrite every distribution URL to a file:// URL under base, per
	// invariant 4: the File source must reproduce the same metadata
	// the HTTP source would, with URLs rewritten under the store.
	for i := range meta.Distributions {
		dist := &meta.Distributions[i]
		if dist.DirectoryURL != "" {
			rewritten, err := layout.DistributionFileURL(s.base, dist.DirectoryURL)
			if err != nil {
				return nil, model.NewSourceError(model.ErrInvalidURL, err)
			}
			dist.DirectoryURL = rewritten
		}
		if dist.Rolie != nil {
			for j := range dist.Rolie.Feeds {
				rewritten, err := layout.DistributionFileURL(s.base, dist.Rolie.Feeds[j].URL)
				if err != nil {
					return nil, model.NewSourceError(model.ErrInvalidURL, err)
				}
				dist.Rolie.Feeds[j].URL = rewritten
			}
		}
	}

	return &meta, nil
}

func (s *FileSource) scanKeys() ([]model.Key, error) {
	dir := filepath.Join(s.base, layout.DirMetadata, "keys")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning keys: %w", err)
	}

	keys := make([]model.Key, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		fingerprint := strings.TrimSuffix(e.Name(), ".txt")
		path := filepath.Join(dir, e.Name())
		fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
		keys = append(keys, model.Key{Fingerprint: fingerprint, URL: fileURL})
	}
	return keys, nil
}

// LoadIndex walks the distribution directory on a dedicated goroutine,
// feeding entries through a bounded channel (capacity 8) to throttle
// itself against a slow consumer, per spec §4.A.2 and §5.
func (s *FileSource) LoadIndex(ctx context.Context, dctx *model.DistributionContext) ([]model.DiscoveredDoc, error) {
	dirPath, err := fileURLToPath(dctx.BaseURL)
	if err != nil {
		return nil, model.NewSourceError(model.ErrInvalidURL, err)
	}

	type walkResult struct {
		path string
		info fs.FileInfo
		err  error
	}

	entries := make(chan walkResult, 8)

	go func() {
		defer close(entries)
		err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				select {
				case entries <- walkResult{err: err}:
				case <-ctx.Done():
				}
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
				return nil
			}
			info, statErr := d.Info()
			select {
			case entries <- walkResult{path: path, info: info, err: statErr}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil && err != context.Canceled {
			select {
			case entries <- walkResult{err: err}:
			default:
			}
		}
	}()

	var docs []model.DiscoveredDoc
	for r := range entries {
		if r.err != nil {
			return nil, model.NewSourceError(model.ErrIO, r.err)
		}
		modified := r.info.ModTime()
		if s.options.Since != nil && modified.Before(*s.options.Since) {
			continue
		}

		docURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(r.path)}
		docs = append(docs, model.DiscoveredDoc{
			URL:      docURL,
			Modified: modified,
			Context:  dctx,
		})
	}

	return docs, nil
}

// LoadDocument reads the document bytes plus any neighbouring
// .asc/.sha256/.sha512 sibling files and the stored ETag extended
// attribute, best-effort (spec §4.A.2).
func (s *FileSource) LoadDocument(ctx context.Context, doc model.DiscoveredDoc) (*model.RetrievedDoc, error) {
	path, err := fileURLToPath(doc.URL)
	if err != nil {
		return nil, model.NewSourceError(model.ErrInvalidURL, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewSourceError(model.ErrIO, err)
	}

	var signature []byte
	if sigData, err := os.ReadFile(path + ".asc"); err == nil {
		signature = sigData
	}

	var expected256, expected512 *model.ExpectedDigest
	if line, err := os.ReadFile(path + ".sha256"); err == nil {
		expected256 = &model.ExpectedDigest{Algorithm: "sha256", Expected: strings.ToLower(firstToken(strings.TrimSpace(string(line))))}
	}
	if line, err := os.ReadFile(path + ".sha512"); err == nil {
		expected512 = &model.ExpectedDigest{Algorithm: "sha512", Expected: strings.ToLower(firstToken(strings.TrimSpace(string(line))))}
	}
	computeActualDigests(data, expected256, expected512)

	info, err := os.Stat(path)
	var lastModification string
	if err == nil {
		lastModification = info.ModTime().UTC().Format(time.RFC1123Z)
	}

	etag, _ := layout.ReadETagAttr(path) // best-effort, absence is not an error

	return &model.RetrievedDoc{
		Discovered: doc,
		Data:       data,
		Signature:  signature,
		SHA256:     expected256,
		SHA512:     expected512,
		Metadata: model.RetrievalMetadata{
			ETag:             etag,
			LastModification: lastModification,
		},
	}, nil
}

func (s *FileSource) LoadPublicKey(ctx context.Context, ref KeyRef) (*openpgputil.PublicKey, error) {
	path, err := fileURLToPath(mustParseURL(ref.URL))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return openpgputil.ParseArmored(data, ref.Fingerprint)
}

// computeActualDigests fills in the Actual field of whichever expected
// digests are present, hashing the already-in-memory document once
// per requested algorithm.
func computeActualDigests(data []byte, sha256Digest, sha512Digest *model.ExpectedDigest) {
	if sha256Digest != nil {
		sum := sha256.Sum256(data)
		sha256Digest.Actual = hex.EncodeToString(sum[:])
	}
	if sha512Digest != nil {
		sum := sha512.Sum512(data)
		sha512Digest.Actual = hex.EncodeToString(sum[:])
	}
}

func fileURLToPath(u *url.URL) (string, error) {
	if u == nil || u.Scheme != "file" {
		return "", fmt.Errorf("not a file URL: %v", u)
	}
	return filepath.FromSlash(u.Path), nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
