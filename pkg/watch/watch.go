// Package watch re-runs the pipeline when the identifier list changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc is invoked after each settled change.
type RunFunc func(ctx context.Context) error

// Watcher observes a single file through its parent directory, so that
// editors replacing the file by rename are seen as well as in-place writes.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	runs int
}

// New creates a watcher for path.
func New(path string, debounce time.Duration, logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger,
	}
}

// Runs returns how many times fn has been invoked.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Run blocks until ctx is done. It invokes fn once at start when runOnStart
// is set, then once per settled change of the watched file. Invocations are
// serial; changes made while fn runs produce one follow-up invocation.
// Errors from fn are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context, runOnStart bool, fn RunFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info().
		Str("path", w.path).
		Dur("debounce", w.debounce).
		Msg("Watching identifier list")

	pending := make(chan struct{}, 1)
	signal := func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}

	if runOnStart {
		signal()
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Int("runs", w.Runs()).Msg("Stopped watching")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Identifier list changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, signal)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-pending:
			w.invoke(ctx, fn)
		}
	}
}

func (w *Watcher) invoke(ctx context.Context, fn RunFunc) {
	w.mu.Lock()
	w.runs++
	n := w.runs
	w.mu.Unlock()

	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error().Err(err).Int("run", n).Msg("Run failed, waiting for the next change")
		return
	}
	w.logger.Debug().Int("run", n).Msg("Run finished")
}
