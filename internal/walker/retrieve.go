package walker

import (
	"context"
	"log/slog"

	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/source"
)

// RetrievingVisitor turns each DiscoveredDoc into a RetrievedDoc by
// calling into a Source, then forwards to an inner RetrievedVisitor
// (spec §4.D). A retrieval failure is logged and the document is
// dropped from the pipeline rather than forwarded — per-document
// failures must not abort the walk (spec §7 propagation policy), and
// a dropped document simply never reaches the inner visitor.
type RetrievingVisitor struct {
	Source source.Source
	Inner  RetrievedVisitor
	Logger *slog.Logger
}

// NewRetrievingVisitor builds a RetrievingVisitor with a default logger
// when logger is nil.
func NewRetrievingVisitor(src source.Source, inner RetrievedVisitor, logger *slog.Logger) *RetrievingVisitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievingVisitor{Source: src, Inner: inner, Logger: logger}
}

func (v *RetrievingVisitor) VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error {
	return v.Inner.VisitContext(ctx, metadata)
}

func (v *RetrievingVisitor) VisitDiscovered(ctx context.Context, doc model.DiscoveredDoc) error {
	retrieved, err := v.Source.LoadDocument(ctx, doc)
	if err != nil {
		retrErr := toRetrievalError(doc, err)
		v.Logger.Warn("retrieval failed", "url", doc.URL, "error", retrErr)
		return nil
	}
	return v.Inner.VisitRetrieved(ctx, *retrieved)
}

func toRetrievalError(doc model.DiscoveredDoc, err error) *model.RetrievalError {
	if se, ok := err.(*model.SourceError); ok {
		return &model.RetrievalError{Doc: doc, Source: se}
	}
	return &model.RetrievalError{Doc: doc, Source: model.NewSourceError(model.ErrIO, err)}
}
