package source

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opslane/advisory-walker/internal/fetcher"
	"github.com/opslane/advisory-walker/internal/model"
)

// MetadataLoader locates and parses a provider's root metadata
// document (spec §4.B): either by well-known lookup under a domain,
// or from a caller-supplied explicit URL.
type MetadataLoader interface {
	Load(ctx context.Context, f *fetcher.Fetcher) (*model.ProviderMetadata, error)
}

// wellKnownLoader resolves https://<domain>/.well-known/<kind>/provider-metadata.json.
type wellKnownLoader struct {
	domain string
	kind   string // "csaf" or "sbom"
	cache  *lru.Cache[string, *model.ProviderMetadata]
}

// metadataCacheSize bounds the in-process cache of resolved provider
// metadata, keyed by domain, so a single run never refetches the same
// provider's root document twice (spec §9 domain-stack: LRU cache for
// well-known metadata lookups).
const metadataCacheSize = 64

var sharedMetadataCache, _ = lru.New[string, *model.ProviderMetadata](metadataCacheSize)

// NewWellKnownLoader builds a loader for the given domain and feed
// kind ("csaf" or "sbom").
func NewWellKnownLoader(domain, kind string) MetadataLoader {
	return &wellKnownLoader{domain: domain, kind: kind, cache: sharedMetadataCache}
}

func (l *wellKnownLoader) Load(ctx context.Context, f *fetcher.Fetcher) (*model.ProviderMetadata, error) {
	cacheKey := l.kind + "://" + l.domain
	if cached, ok := l.cache.Get(cacheKey); ok {
		return cached, nil
	}

	url := fmt.Sprintf("https://%s/.well-known/%s/provider-metadata.json", l.domain, l.kind)
	resp, err := f.Get(ctx, url)
	if err != nil {
		return nil, model.NewSourceError(model.ErrNetworkFailure, err)
	}
	if resp == nil {
		return nil, model.NewSourceError(model.ErrNotFound, fmt.Errorf("no provider metadata at %s", url))
	}

	meta, err := parseProviderMetadata(resp.Body)
	if err != nil {
		return nil, model.NewSourceError(model.ErrInvalidJSON, err)
	}

	l.cache.Add(cacheKey, meta)
	return meta, nil
}

// explicitLoader fetches the provider metadata JSON directly from a
// caller-supplied URL, bypassing well-known discovery.
type explicitLoader struct {
	url string
}

// NewExplicitLoader builds a loader for an exact metadata URL.
func NewExplicitLoader(url string) MetadataLoader {
	return &explicitLoader{url: url}
}

func (l *explicitLoader) Load(ctx context.Context, f *fetcher.Fetcher) (*model.ProviderMetadata, error) {
	resp, err := f.Get(ctx, l.url)
	if err != nil {
		return nil, model.NewSourceError(model.ErrNetworkFailure, err)
	}
	if resp == nil {
		return nil, model.NewSourceError(model.ErrNotFound, fmt.Errorf("no provider metadata at %s", l.url))
	}

	meta, err := parseProviderMetadata(resp.Body)
	if err != nil {
		return nil, model.NewSourceError(model.ErrInvalidJSON, err)
	}
	return meta, nil
}

func parseProviderMetadata(data []byte) (*model.ProviderMetadata, error) {
	var meta model.ProviderMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing provider metadata: %w", err)
	}
	return &meta, nil
}
