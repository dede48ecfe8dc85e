// Package watch keeps the index current while files change on disk.
package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"refindex/internal/pipeline"

	"github.com/fsnotify/fsnotify"
)

const tick = 100 * time.Millisecond

// Watcher re-runs an incremental pipeline for files that changed, once they
// have been quiet for the debounce interval.
type Watcher struct {
	pipe     *pipeline.Pipeline
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *log.Logger
	pending  map[string]time.Time // path -> last change
}

// New creates a watcher. Call Run to start it.
func New(p *pipeline.Pipeline, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		pipe:     p,
		watcher:  fw,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run performs an initial scan, then blocks re-indexing changed files until
// ctx is cancelled or a run fails fatally.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if _, err := w.pipe.Run(ctx); err != nil {
		return err
	}
	if err := w.addRecursive(w.pipe.Root()); err != nil {
		return err
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, time.Now())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("⚠️ Watch error: %v", err)

		case now := <-ticker.C:
			paths := duePaths(w.pending, now, w.debounce)
			if len(paths) == 0 {
				continue
			}
			if _, err := w.pipe.Restrict(paths).Run(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return w.pipe.Crawler().WalkDirs(dir, func(path string) {
		if err := w.watcher.Add(path); err != nil {
			w.logger.Printf("⚠️ Cannot watch %s: %v", path, err)
		}
	}, func(path string, err error) {
		w.logger.Printf("⚠️ Skipping %s: %v", path, err)
	})
}

// handleEvent records changed source files. Removals and renames are
// ignored: the index is never pruned.
func (w *Watcher) handleEvent(event fsnotify.Event, now time.Time) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	cr := w.pipe.Crawler()
	if rel, err := filepath.Rel(w.pipe.Root(), event.Name); err == nil && cr.Excluded(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Printf("⚠️ Cannot watch %s: %v", event.Name, err)
			}
			// files created before the watch was added are picked up by a rescan
			w.markTree(event.Name, now)
			return
		}
	}

	if cr.Matches(filepath.Base(event.Name)) {
		w.pending[event.Name] = now
	}
}

func (w *Watcher) markTree(dir string, now time.Time) {
	err := w.pipe.Crawler().ScanProject(dir, func(path string) {
		w.pending[path] = now
	}, func(string, error) {})
	if err != nil {
		w.logger.Printf("⚠️ Rescan of %s failed: %v", dir, err)
	}
}

// duePaths removes and returns, sorted, the paths that have been quiet for
// at least debounce.
func duePaths(pending map[string]time.Time, now time.Time, debounce time.Duration) []string {
	var due []string
	for path, changed := range pending {
		if now.Sub(changed) >= debounce {
			due = append(due, path)
			delete(pending, path)
		}
	}
	sort.Strings(due)
	return due
}
