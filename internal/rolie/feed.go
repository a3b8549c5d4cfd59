// Package rolie parses ROLIE (Resource-Oriented Lightweight
// Information Exchange) feed documents into the flattened entries the
// HTTP source needs (spec §4.A.1, §6).
package rolie

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Link is a single entry link, distinguished by Rel.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type feedEntry struct {
	Updated string `json:"updated"`
	Link    []Link `json:"link"`
}

type feedDocument struct {
	Feed struct {
		Entry []feedEntry `json:"entry"`
	} `json:"feed"`
}

// SourceFile is one flattened ROLIE feed entry: the document URL, its
// update timestamp, and optional digest/signature URLs.
type SourceFile struct {
	File      string
	Updated   string
	DigestURL string // empty if absent
	Signature string // empty if absent
}

// Parse flattens a ROLIE feed JSON document's entries into
// SourceFiles, pulling the first "self" link as the document URL,
// the first "signature" link as the signature URL, and the first
// hash-labeled link as the digest URL (spec §4.A.1).
func Parse(data []byte) ([]SourceFile, error) {
	var doc feedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing ROLIE feed: %w", err)
	}

	files := make([]SourceFile, 0, len(doc.Feed.Entry))
	for _, e := range doc.Feed.Entry {
		var self, sig, digest string
		for _, l := range e.Link {
			switch l.Rel {
			case "self":
				if self == "" {
					self = l.Href
				}
			case "signature":
				if sig == "" {
					sig = l.Href
				}
			case "hash":
				if digest == "" && isDigestLink(l.Href) {
					digest = l.Href
				}
			}
		}
		if self == "" {
			continue // entry without a self link carries no document
		}
		files = append(files, SourceFile{
			File:      self,
			Updated:   e.Updated,
			DigestURL: digest,
			Signature: sig,
		})
	}

	return files, nil
}

func isDigestLink(href string) bool {
	return strings.HasSuffix(href, ".sha256") || strings.HasSuffix(href, ".sha512")
}
