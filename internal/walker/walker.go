package walker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/opslane/advisory-walker/internal/model"
	"github.com/opslane/advisory-walker/internal/source"
)

// DistributionFilter decides whether a distribution is walked at all.
// It runs before any network I/O for that distribution, so a provider
// with distributions the caller doesn't care about never pays for
// fetching their index (spec §4.C).
type DistributionFilter func(*model.DistributionContext) bool

// Walker drives a Source through the discover stage of the pipeline,
// handing each discovered document to a DiscoveredVisitor. The visitor
// chain built on top (skip, retrieve, validate, store) decides what
// happens to each document from there (spec §4.H).
type Walker struct {
	Source             source.Source
	DistributionFilter DistributionFilter
	Logger             *slog.Logger
	ProgressOutput     io.Writer
}

// NewWalker builds a Walker over src with no distribution filter and a
// default logger. Progress output defaults to stderr.
func NewWalker(src source.Source) *Walker {
	return &Walker{Source: src, Logger: slog.Default(), ProgressOutput: os.Stderr}
}

func (w *Walker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func (w *Walker) progressOutput() io.Writer {
	if w.ProgressOutput == nil {
		return os.Stderr
	}
	return w.ProgressOutput
}

// collectDistributions flattens a provider's directory and ROLIE-feed
// distributions into a single ordered list of contexts, applying the
// configured filter before any of them is ever fetched.
func (w *Walker) collectDistributions(distributions []model.Distribution) []*model.DistributionContext {
	var contexts []*model.DistributionContext
	for _, dist := range distributions {
		if dist.Rolie != nil {
			for _, feed := range dist.Rolie.Feeds {
				u, err := parseURL(feed.URL)
				if err != nil {
					w.logger().Warn("skipping feed with invalid URL", "url", feed.URL, "error", err)
					continue
				}
				contexts = append(contexts, &model.DistributionContext{Kind: model.KindFeed, BaseURL: u})
			}
		}
		if dist.DirectoryURL != "" {
			u, err := parseURL(dist.DirectoryURL)
			if err != nil {
				w.logger().Warn("skipping distribution with invalid URL", "url", dist.DirectoryURL, "error", err)
				continue
			}
			contexts = append(contexts, &model.DistributionContext{Kind: model.KindDirectory, BaseURL: u})
		}
	}

	if w.DistributionFilter == nil {
		return contexts
	}
	filtered := contexts[:0:0]
	for _, ctx := range contexts {
		if w.DistributionFilter(ctx) {
			filtered = append(filtered, ctx)
		}
	}
	return filtered
}

// Walk drives the pipeline sequentially: one distribution at a time,
// one document at a time, in index order. Any visitor error aborts the
// walk immediately — it is treated as fatal, not per-document (spec
// §4.H point 4).
func (w *Walker) Walk(ctx context.Context, visitor DiscoveredVisitor) error {
	metadata, err := w.Source.LoadMetadata(ctx)
	if err != nil {
		return fmt.Errorf("loading provider metadata: %w", err)
	}

	if err := visitor.VisitContext(ctx, metadata); err != nil {
		return err
	}

	distributions := w.collectDistributions(metadata.Distributions)
	w.logger().Info("processing distributions", "count", len(distributions))

	for _, dctx := range distributions {
		w.logger().Info("walking distribution", "url", dctx.String())
		index, err := w.Source.LoadIndex(ctx, dctx)
		if err != nil {
			return fmt.Errorf("loading index for %s: %w", dctx.String(), err)
		}

		bar := newProgressBar(dctx.String(), len(index), w.progressOutput(), isTerminal(os.Stderr.Fd()))
		for _, doc := range index {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.logger().Debug("discovered document", "url", doc.URL, "name", doc.Name())
			if err := visitor.VisitDiscovered(ctx, doc); err != nil {
				return err
			}
			bar.tick()
		}
		bar.finish()
	}

	return nil
}

// WalkParallel behaves like Walk, but fans document visits out across
// up to limit goroutines. All distributions are indexed up front so
// the total document count is known before the progress bar starts;
// visit order across documents is no longer guaranteed, but every
// document discovered is still visited exactly once, and the first
// visitor error cancels the rest of the walk (spec §4.H, §5).
func (w *Walker) WalkParallel(ctx context.Context, limit int, visitor DiscoveredVisitor) error {
	if limit <= 0 {
		limit = 1
	}

	metadata, err := w.Source.LoadMetadata(ctx)
	if err != nil {
		return fmt.Errorf("loading provider metadata: %w", err)
	}

	if err := visitor.VisitContext(ctx, metadata); err != nil {
		return err
	}

	distributions := w.collectDistributions(metadata.Distributions)
	w.logger().Info("processing distributions", "count", len(distributions))

	var docs []model.DiscoveredDoc
	for _, dctx := range distributions {
		index, err := w.Source.LoadIndex(ctx, dctx)
		if err != nil {
			return fmt.Errorf("loading index for %s: %w", dctx.String(), err)
		}
		docs = append(docs, index...)
	}
	w.logger().Info("discovered documents", "count", len(docs))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bar := newProgressBar("walking", len(docs), w.progressOutput(), isTerminal(os.Stderr.Fd()))

	jobs := make(chan model.DiscoveredDoc)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i := 0; i < limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				if err := visitor.VisitDiscovered(runCtx, doc); err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				bar.tick()
			}
		}()
	}

feed:
	for _, doc := range docs {
		select {
		case jobs <- doc:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	bar.finish()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
