package walker

import (
	"io"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// progressBar wraps schollz/progressbar/v3 behind a mutex so the
// parallel walk's worker goroutines can tick it concurrently without
// holding a lock across any suspension point — the lock is acquired
// only for the tick/finish call itself (spec §5 "progress-bar mutex").
type progressBar struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// newProgressBar builds a progress bar for count items. When output
// isn't a terminal, rendering is discarded entirely rather than
// spamming a log file or pipe with carriage-return escapes.
func newProgressBar(description string, count int, w io.Writer, tty bool) *progressBar {
	if !tty {
		w = io.Discard
	}
	return &progressBar{
		bar: progressbar.NewOptions(count,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(w),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (p *progressBar) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Add(1)
}

func (p *progressBar) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

// isTerminal reports whether fd belongs to a terminal, so a walk run
// from a script or CI job doesn't emit progress-bar escape codes.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd)
}
