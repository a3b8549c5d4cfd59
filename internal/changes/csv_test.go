package changes

import "testing"

func TestParseBasic(t *testing.T) {
	data := []byte("a.json,2024-01-01T00:00:00Z\nb.json,2024-06-01T00:00:00Z\n")
	entries, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].File != "a.json" {
		t.Fatalf("unexpected file: %q", entries[0].File)
	}
}

func TestParseIgnoresBlankTrailingLine(t *testing.T) {
	data := []byte("a.json,2024-01-01T00:00:00Z\n\n")
	entries, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}

func TestParseRejectsBadTimestamp(t *testing.T) {
	data := []byte("a.json,not-a-date\n")
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}

func TestJoinPathStripsOneSlash(t *testing.T) {
	if got := JoinPath("https://ex/d/", "/a.json"); got != "https://ex/d/a.json" {
		t.Fatalf("unexpected join: %q", got)
	}
	if got := JoinPath("https://ex/d/", "a.json"); got != "https://ex/d/a.json" {
		t.Fatalf("unexpected join: %q", got)
	}
	if got := JoinPath("https://ex/d", "a.json"); got != "https://ex/da.json" {
		t.Fatalf("unexpected join for no-slash base: %q", got)
	}
}
