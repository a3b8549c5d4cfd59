// Package source implements the two interchangeable Source backends
// (HTTP and filesystem) described in spec §4.A, plus the runtime
// dispatcher that picks between them.
package source

import (
	"context"

	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/openpgputil"
)

// KeyRef identifies a public key to load: its fingerprint and the URL
// (or file path, depending on backend) it's published at.
type KeyRef struct {
	Fingerprint string
	URL         string
}

// Source is the capability set every backend implements: load the
// provider's root metadata, enumerate a distribution's documents, and
// retrieve a single discovered document or public key. Both the HTTP
// and File backends share this single contract so the downstream
// pipeline (skip, retrieve, validate, store) never needs to know which
// backend produced a value.
type Source interface {
	// LoadMetadata locates and parses the provider's root metadata.
	LoadMetadata(ctx context.Context) (*model.ProviderMetadata, error)

	// LoadIndex enumerates the documents offered by a single
	// distribution, in index order.
	LoadIndex(ctx context.Context, dctx *model.DistributionContext) ([]model.DiscoveredDoc, error)

	// LoadDocument retrieves a single discovered document's bytes,
	// optional digests, and optional signature.
	LoadDocument(ctx context.Context, doc model.DiscoveredDoc) (*model.RetrievedDoc, error)

	// LoadPublicKey retrieves and parses a single trusted public key.
	LoadPublicKey(ctx context.Context, ref KeyRef) (*openpgputil.PublicKey, error)
}
