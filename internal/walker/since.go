package walker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReadSinceFile reads the watermark a previous successful walk left
// behind: a single RFC-3339 timestamp. A missing file means "no prior
// watermark" rather than an error, so the first run against a fresh
// since_file walks everything.
func ReadSinceFile(path string) (*time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading since file %s: %w", path, err)
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing since file %s: %w", path, err)
	}
	return &ts, nil
}

// WriteSinceFile atomically rewrites the watermark to now minus a
// safety offset. This must only ever be called after a walk completes
// successfully — a failed walk must leave the previous watermark in
// place, or documents discovered-but-not-yet-retrieved during the
// failed run would be silently skipped on retry (spec §6, §9).
func WriteSinceFile(path string, now time.Time, offset time.Duration) error {
	watermark := now.Add(-offset).UTC().Format(time.RFC3339)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-since-*")
	if err != nil {
		return fmt.Errorf("creating temp since file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op once renamed

	if _, err := tmp.WriteString(watermark); err != nil {
		tmp.Close()
		return fmt.Errorf("writing since file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing since file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming since file %s to %s: %w", tmpName, path, err)
	}
	return nil
}
