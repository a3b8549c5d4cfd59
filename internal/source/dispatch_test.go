package source

import "testing"

func TestOpenDispatchesByInputShape(t *testing.T) {
	f := newTestSourceFetcher()

	httpSrc, err := Open("https://example.com/.well-known/csaf/provider-metadata.json", f, Options{})
	if err != nil {
		t.Fatalf("Open(http): %v", err)
	}
	if _, ok := httpSrc.(*HTTPSource); !ok {
		t.Fatalf("expected *HTTPSource for an http(s) URL, got %T", httpSrc)
	}

	dir := t.TempDir()
	dirSrc, err := Open(dir, f, Options{})
	if err != nil {
		t.Fatalf("Open(dir): %v", err)
	}
	if _, ok := dirSrc.(*FileSource); !ok {
		t.Fatalf("expected *FileSource for a local directory, got %T", dirSrc)
	}

	fileURLSrc, err := Open("file://"+dir, f, Options{})
	if err != nil {
		t.Fatalf("Open(file url): %v", err)
	}
	if _, ok := fileURLSrc.(*FileSource); !ok {
		t.Fatalf("expected *FileSource for a file:// URL, got %T", fileURLSrc)
	}

	domainSrc, err := Open("example.com", f, Options{})
	if err != nil {
		t.Fatalf("Open(domain): %v", err)
	}
	if _, ok := domainSrc.(*HTTPSource); !ok {
		t.Fatalf("expected *HTTPSource for a bare domain, got %T", domainSrc)
	}
}
