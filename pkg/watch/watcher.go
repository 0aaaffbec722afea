package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gaps-closure/vscle/internal/scanner"
	"github.com/gaps-closure/vscle/pkg/config"
)

// DefaultDebounce is used when a non-positive debounce is given.
const DefaultDebounce = 500 * time.Millisecond

// Callback receives a batch of changed source files, sorted.
type Callback func(ctx context.Context, changed []string)

// Watcher monitors the source directories and reports settled changes.
// Batches are delivered one at a time, so a callback that starts an
// analysis session never overlaps with the next.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	sources   *scanner.Scanner
	debounce  time.Duration
	roots     []string
	callback  Callback
	logger    *slog.Logger
	mu        sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a watcher over cfg.SourceDirs.
func NewWatcher(cfg *config.Config, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	roots := make([]string, 0, len(cfg.SourceDirs))
	for _, dir := range cfg.SourceDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			fsWatcher.Close()
			return nil, err
		}
		roots = append(roots, abs)
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		sources:   scanner.NewScanner(cfg, scanner.WithLogger(logger)),
		debounce:  debounce,
		roots:     roots,
		logger:    logger,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function to call when files change.
func (w *Watcher) SetCallback(cb Callback) {
	w.callback = cb
}

// Start watches until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			return err
		}
	}
	w.logger.Info("watching for changes", "dirs", w.roots, "debounce", w.debounce)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// addTree watches dir and its subdirectories, skipping excluded ones.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("skipping unreadable directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.config.ShouldExcludeDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// handleEvent processes a filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.config.ShouldExcludeDir(info.Name()) {
				if err := w.addTree(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	// Same membership rule as the analyzed source set.
	if !w.sources.Includes(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processDebounced delivers settled batches until ctx is done.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ready := w.takeReady(time.Now()); len(ready) > 0 && w.callback != nil {
				w.callback(ctx, ready)
			}
		}
	}
}

// takeReady removes and returns the files that have been quiet for the
// debounce period.
func (w *Watcher) takeReady(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	slices.Sort(ready)
	return ready
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the watched directories.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
