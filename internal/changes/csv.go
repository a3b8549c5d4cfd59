// Package changes parses the changes.csv index published under a
// directory distribution: two unheadered columns, a relative file
// path and an RFC-3339 timestamp (spec §4.A.1, §6).
package changes

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// Entry is a single row of changes.csv.
type Entry struct {
	File      string
	Timestamp time.Time
}

// Parse reads changes.csv content: two columns, no header, comma
// separated, blank trailing lines ignored.
func Parse(data []byte) ([]Entry, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var entries []Entry
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing changes.csv: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue // blank trailing line
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("parsing changes.csv: expected 2 columns, got %d", len(record))
		}

		path := strings.TrimSpace(record[0])
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("parsing changes.csv timestamp %q: %w", record[1], err)
		}

		entries = append(entries, Entry{File: path, Timestamp: ts})
	}

	return entries, nil
}

// DecompressXZ transparently decompresses an xz-compressed
// changes.csv.xz payload, used when a mirror publishes only the
// compressed bulk form of its index.
func DecompressXZ(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening xz stream: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing xz stream: %w", err)
	}
	return out, nil
}

// JoinPath joins a changes.csv relative path onto a directory
// distribution's base URL string, stripping one slash when both the
// base and the path end/start with '/' (spec §4.A.1, §9).
func JoinPath(base, rel string) string {
	hasSlash := strings.HasSuffix(base, "/")
	if hasSlash && strings.HasPrefix(rel, "/") {
		rel = rel[1:]
	}
	return base + rel
}
