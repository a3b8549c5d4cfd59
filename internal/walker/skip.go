package walker

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/opslane/advisory-walker/internal/layout"
	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/safety"
)

// SkipExistingVisitor wraps a downstream DiscoveredVisitor, dropping
// documents that are already stored and at least as fresh as both
// their own declared modification time and the configured watermark
// (spec §4.F). It never performs network I/O itself — only a stat
// against the would-be storage path.
type SkipExistingVisitor struct {
	Base   string
	Since  *time.Time
	Inner  DiscoveredVisitor
	Logger *slog.Logger
}

// NewSkipExistingVisitor builds a SkipExistingVisitor rooted at base.
func NewSkipExistingVisitor(base string, since *time.Time, inner DiscoveredVisitor, logger *slog.Logger) *SkipExistingVisitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SkipExistingVisitor{Base: base, Since: since, Inner: inner, Logger: logger}
}

func (v *SkipExistingVisitor) VisitContext(ctx context.Context, metadata *model.ProviderMetadata) error {
	return v.Inner.VisitContext(ctx, metadata)
}

func (v *SkipExistingVisitor) VisitDiscovered(ctx context.Context, doc model.DiscoveredDoc) error {
	if v.shouldSkip(doc) {
		v.Logger.Debug("skipping unchanged document", "url", doc.URL)
		return nil
	}
	return v.Inner.VisitDiscovered(ctx, doc)
}

func (v *SkipExistingVisitor) shouldSkip(doc model.DiscoveredDoc) bool {
	path, err := v.storagePath(doc)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.ModTime().Before(doc.Modified) {
		return false
	}
	if v.Since != nil && info.ModTime().Before(*v.Since) {
		return false
	}
	return true
}

func (v *SkipExistingVisitor) storagePath(doc model.DiscoveredDoc) (string, error) {
	if doc.Context == nil || doc.Context.BaseURL == nil {
		return "", errNoContext
	}
	distDir, err := layout.DistributionPath(v.Base, doc.Context.BaseURL.String())
	if err != nil {
		return "", err
	}
	rel, err := makeRelative(doc.Context.BaseURL, doc.URL)
	if err != nil {
		return "", err
	}
	return safety.SafeJoinUnder(distDir, rel)
}

var errNoContext = &skipError{"document has no distribution context"}

type skipError struct{ msg string }

func (e *skipError) Error() string { return e.msg }
