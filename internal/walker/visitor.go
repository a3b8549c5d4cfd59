// Package walker drives a provider's metadata through the stacked
// visitor pipeline — discover, skip, retrieve, validate, store — and
// exposes a sequential and a bounded-concurrency orchestrator (spec
// §4, §5). Stages compose by wrapping a downstream visitor of a
// different interface type, rather than by subclassing a shared base:
// each tier gets a distinctly named Visit method so a single struct
// (StoreVisitor) can implement two tiers without a name clash.
package walker

import (
	"context"

	"github.com/opslane/advisory-walker/internal/model"
)

// DiscoveredVisitor is the outermost stage: it sees every document the
// index enumerated, before retrieval.
type DiscoveredVisitor interface {
	// VisitContext is called once per walk, after the provider
	// metadata is loaded, before any distribution is indexed.
	VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error

	// VisitDiscovered is called once per discovered document.
	VisitDiscovered(ctx context.Context, doc model.DiscoveredDoc) error
}

// RetrievedVisitor sees a document after its bytes (and any
// signature/digest siblings) have been fetched.
type RetrievedVisitor interface {
	VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error
	VisitRetrieved(ctx context.Context, doc model.RetrievedDoc) error
}

// ValidatedVisitor sees a document after signature and digest checks
// have run, regardless of outcome — ValidatedDoc.OK() reports whether
// it passed.
type ValidatedVisitor interface {
	VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error
	VisitValidated(ctx context.Context, doc model.ValidatedDoc) error
}
