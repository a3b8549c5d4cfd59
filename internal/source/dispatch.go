package source

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opslane/advisory-walker/internal/fetcher"
)

// Options configures dispatch: whichever backend is picked sees the
// same since-watermark cutoff.
type Options struct {
	Since *time.Time
}

// Open picks the HTTP or File backend for input, which is either a
// provider domain/URL or a path to a tree a prior run stored (spec
// §4.A.3). A bare domain (no scheme, no existing local directory) is
// treated as a well-known HTTPS provider lookup.
func Open(input string, f *fetcher.Fetcher, opts Options) (Source, error) {
	switch {
	case strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://"):
		return NewHTTPSource(f, NewExplicitLoader(input), HTTPOptions{Since: opts.Since}), nil

	case strings.HasPrefix(input, "file://"):
		path := strings.TrimPrefix(input, "file://")
		return NewFileSource(path, FileOptions{Since: opts.Since})

	default:
		if info, err := os.Stat(input); err == nil && info.IsDir() {
			return NewFileSource(input, FileOptions{Since: opts.Since})
		}
		if _, err := os.Stat(input); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("inspecting %q: %w", input, err)
		}
		return NewHTTPSource(f, NewWellKnownLoader(input, "csaf"), HTTPOptions{Since: opts.Since}), nil
	}
}
