package source

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opslane/advisory-walker/internal/layout"
	"github.com/opslane/advisory-walker/internal/model"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestFileSourceLoadMetadataRewritesURLs(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, layout.DirMetadata, "provider-metadata.json"),
		[]byte(`{"id":"example","distributions":[{"directory_url":"https://example.com/advisories/"}]}`))

	src, err := NewFileSource(base, FileOptions{})
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	meta, err := src.LoadMetadata(context.Background())
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if len(meta.Distributions) != 1 {
		t.Fatalf("expected 1 distribution, got %d", len(meta.Distributions))
	}
	got := meta.Distributions[0].DirectoryURL
	if got == "" || got[:7] != "file://" {
		t.Fatalf("expected a rewritten file:// URL, got %q", got)
	}
}

func TestFileSourceLoadMetadataScansKeys(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, layout.DirMetadata, "provider-metadata.json"), []byte(`{"distributions":[]}`))
	writeFile(t, filepath.Join(base, layout.DirMetadata, "keys", "ABCDEF.txt"), []byte("-----BEGIN PGP PUBLIC KEY BLOCK-----"))

	src, err := NewFileSource(base, FileOptions{})
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	meta, err := src.LoadMetadata(context.Background())
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if len(meta.PublicOpenPGPKeys) != 1 || meta.PublicOpenPGPKeys[0].Fingerprint != "ABCDEF" {
		t.Fatalf("unexpected keys: %+v", meta.PublicOpenPGPKeys)
	}
}

func TestFileSourceLoadIndexFiltersNonJSONAndSince(t *testing.T) {
	base := t.TempDir()
	distDir := filepath.Join(base, "dist")
	writeFile(t, filepath.Join(distDir, "a.json"), []byte(`{}`))
	writeFile(t, filepath.Join(distDir, "ignore.txt"), []byte("nope"))

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(distDir, "a.json"), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	src, err := NewFileSource(base, FileOptions{})
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	dctx := &model.DistributionContext{
		Kind:    model.KindDirectory,
		BaseURL: &url.URL{Scheme: "file", Path: distDir},
	}
	docs, err := src.LoadIndex(context.Background(), dctx)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(docs) != 1 || docs[0].Name() != "a.json" {
		t.Fatalf("expected exactly a.json, got %+v", docs)
	}

	since := time.Now().Add(-1 * time.Hour)
	src2, _ := NewFileSource(base, FileOptions{Since: &since})
	docs2, err := src2.LoadIndex(context.Background(), dctx)
	if err != nil {
		t.Fatalf("LoadIndex with since: %v", err)
	}
	if len(docs2) != 0 {
		t.Fatalf("expected since filter to exclude old file, got %+v", docs2)
	}
}

func TestFileSourceLoadDocumentReadsSiblings(t *testing.T) {
	base := t.TempDir()
	docPath := filepath.Join(base, "dist", "a.json")
	writeFile(t, docPath, []byte(`{"hello":"world"}`))
	writeFile(t, docPath+".asc", []byte("-----BEGIN PGP SIGNATURE-----"))
	writeFile(t, docPath+".sha256", []byte("deadbeef  a.json"))

	src, err := NewFileSource(base, FileOptions{})
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	doc := model.DiscoveredDoc{URL: &url.URL{Scheme: "file", Path: docPath}}
	retrieved, err := src.LoadDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if string(retrieved.Signature) != "-----BEGIN PGP SIGNATURE-----" {
		t.Fatalf("expected signature to be read")
	}
	if retrieved.SHA256 == nil || retrieved.SHA256.Expected != "deadbeef" {
		t.Fatalf("expected sha256 expected digest to be parsed, got %+v", retrieved.SHA256)
	}
	if retrieved.SHA256.Actual == "" {
		t.Fatalf("expected actual digest to be computed")
	}
	if retrieved.SHA512 != nil {
		t.Fatalf("expected no sha512 sibling")
	}
}
