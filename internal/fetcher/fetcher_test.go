package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestFetcher() *Fetcher {
	f := New(Options{RetryCount: 3}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.backoffFunc = func(attempt int) time.Duration { return 0 }
	return f
}

func TestGetReturnsBodyAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer server.Close()

	resp, err := newTestFetcher().Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "hello world" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
	if resp.ETag != `"abc123"` {
		t.Fatalf("unexpected etag: %q", resp.ETag)
	}
}

func TestGet404ReturnsNilNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := newTestFetcher().Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error for 404, got %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response for 404, got %+v", resp)
	}
}

func TestGetRetriesOn500ThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp, err := newTestFetcher().Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestGetDoesNotRetry4xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestFetcher().Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for non-retryable status, got %d", attempts)
	}
}

func TestGetStreamingInvokesProcessors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("streamed-body"))
	}))
	defer server.Close()

	var seen []byte
	resp, err := newTestFetcher().GetStreaming(context.Background(), server.URL, func(chunk []byte) {
		seen = append(seen, chunk...)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(seen) != "streamed-body" {
		t.Fatalf("processor did not observe full body: %q", seen)
	}
	if string(resp.Body) != "streamed-body" {
		t.Fatalf("unexpected buffered body: %q", resp.Body)
	}
}
