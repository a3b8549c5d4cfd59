// Package model holds the data types that flow through the walker
// pipeline: provider metadata, distributions, and the discovered,
// retrieved, and validated document stages.
package model

import "net/url"

// Key references a provider's trusted OpenPGP public key by fingerprint
// and the URL it can be fetched from.
type Key struct {
	Fingerprint string `json:"fingerprint"`
	URL         string `json:"url"`
}

// RolieFeed is a single ROLIE feed URL offered by a distribution.
type RolieFeed struct {
	URL string `json:"url"`
}

// Rolie groups the ROLIE feeds of a distribution.
type Rolie struct {
	Feeds []RolieFeed `json:"feeds"`
}

// Distribution is a single channel through which a provider publishes
// documents: either a directory with a changes.csv index, a set of
// ROLIE feeds, or both.
type Distribution struct {
	DirectoryURL string `json:"directory_url,omitempty"`
	Rolie        *Rolie `json:"rolie,omitempty"`
}

// ProviderMetadata is the parsed root document: a provider identifier,
// its distributions, and the public keys it publishes advisories
// under. Read-only once loaded.
type ProviderMetadata struct {
	ID              string         `json:"id,omitempty"`
	Distributions   []Distribution `json:"distributions"`
	PublicOpenPGPKeys []Key        `json:"public_openpgp_keys,omitempty"`
}

// DistributionKind identifies which variant a DistributionContext wraps.
type DistributionKind int

const (
	KindDirectory DistributionKind = iota
	KindFeed
)

// DistributionContext pairs a distribution with the base URL used for
// relative-URL resolution and canonical storage-path derivation. It is
// shared, read-only, among every document discovered from it — a
// DiscoveredDoc holds a reference to its DistributionContext, never
// the reverse.
type DistributionContext struct {
	Kind    DistributionKind
	BaseURL *url.URL
}

// URL returns the context's base/feed URL.
func (c *DistributionContext) URL() *url.URL {
	return c.BaseURL
}

func (c *DistributionContext) String() string {
	if c.BaseURL == nil {
		return "<nil distribution>"
	}
	return c.BaseURL.String()
}
