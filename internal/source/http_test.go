package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/opslane/advisory-walker/internal/fetcher"
	"github.com/opslane/advisory-walker/internal/model"
)

func newTestSourceFetcher() *fetcher.Fetcher {
	f := fetcher.New(fetcher.Options{RetryCount: 1}, nil)
	return f
}

func TestLoadDirectoryIndexParsesChangesCSV(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/advisories/changes.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("a.json,2024-01-01T00:00:00Z\nb.json,2024-06-01T00:00:00Z\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dctxURL := mustParseTestURL(t, srv.URL+"/advisories/")
	dctx := &model.DistributionContext{Kind: model.KindDirectory, BaseURL: dctxURL}

	src := NewHTTPSource(newTestSourceFetcher(), NewExplicitLoader(srv.URL), HTTPOptions{})
	docs, err := src.LoadIndex(context.Background(), dctx)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Name() != "a.json" || docs[1].Name() != "b.json" {
		t.Fatalf("unexpected doc names: %+v", docs)
	}
}

func TestLoadDirectoryIndexSinceFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/advisories/changes.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("a.json,2024-01-01T00:00:00Z\nb.json,2024-06-01T00:00:00Z\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dctxURL := mustParseTestURL(t, srv.URL+"/advisories/")
	dctx := &model.DistributionContext{Kind: model.KindDirectory, BaseURL: dctxURL}

	src := NewHTTPSource(newTestSourceFetcher(), NewExplicitLoader(srv.URL), HTTPOptions{Since: &since})
	docs, err := src.LoadIndex(context.Background(), dctx)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(docs) != 1 || docs[0].Name() != "b.json" {
		t.Fatalf("expected only b.json after since filter, got %+v", docs)
	}
}

func TestLoadDocumentFetchesSiblingsAndComputesDigests(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	mux := http.NewServeMux()
	mux.HandleFunc("/a.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	})
	mux.HandleFunc("/a.json.asc", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("-----BEGIN PGP SIGNATURE-----"))
	})
	mux.HandleFunc("/a.json.sha256", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cafebabe  a.json"))
	})
	mux.HandleFunc("/a.json.sha512", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	docURL := mustParseTestURL(t, srv.URL+"/a.json")
	doc := model.DiscoveredDoc{URL: docURL}

	src := NewHTTPSource(newTestSourceFetcher(), NewExplicitLoader(srv.URL), HTTPOptions{})
	retrieved, err := src.LoadDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if string(retrieved.Signature) != "-----BEGIN PGP SIGNATURE-----" {
		t.Fatalf("expected signature fetched")
	}
	if retrieved.SHA256 == nil || retrieved.SHA256.Expected != "cafebabe" {
		t.Fatalf("expected sha256 digest parsed, got %+v", retrieved.SHA256)
	}
	if retrieved.SHA256.Actual == "" {
		t.Fatalf("expected actual sha256 to be computed while streaming")
	}
	if retrieved.SHA512 != nil {
		t.Fatalf("expected no sha512 digest since sibling 404s")
	}
}

func mustParseTestURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing url %q: %v", raw, err)
	}
	return u
}
