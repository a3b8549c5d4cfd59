package model

import (
	"net/url"
	"time"
)

// DiscoveredDoc is the uniform shape produced by Source.LoadIndex for
// both advisories and SBOMs: an absolute document URL, its last
// modification timestamp, optional signature/digest URLs, and a
// back-reference to the DistributionContext it came from.
type DiscoveredDoc struct {
	URL          *url.URL
	Modified     time.Time
	SignatureURL *url.URL
	DigestURL    *url.URL
	Context      *DistributionContext
}

// Name returns the last path segment of the document URL, for logging
// and progress messages.
func (d DiscoveredDoc) Name() string {
	if d.URL == nil {
		return ""
	}
	p := d.URL.Path
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
