// Package watch is an optional, ambient-only enrichment outside the C1-C9
// budget: it drives C8 (internal/engine/syncer) from local filesystem
// events instead of a manual or polled trigger, per SPEC_FULL.md §11.1.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SyncFunc runs one sync pass; it is called from a time.AfterFunc timer
// goroutine, so a new pass can start while an earlier one is still running,
// and callers whose sync engine is not reentrant must serialize internally.
type SyncFunc func(ctx context.Context) error

// Config configures a Watcher.
type Config struct {
	// Root is the local directory tree to watch, recursively.
	Root string
	// Debounce coalesces bursts of events (e.g. a large copy) into a single
	// sync pass; zero uses DefaultDebounce.
	Debounce time.Duration
	Sync     SyncFunc
	Logger   *zap.Logger

	// Ignore, when non-nil, excludes matching paths from being watched and
	// from triggering a sync pass on their own changes.
	Ignore *IgnoreMatcher
}

// DefaultDebounce is the quiet period after the last filesystem event
// before a sync pass fires.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches Root for changes and fires Sync after each debounced
// burst of activity, until its context is cancelled.
type Watcher struct {
	cfg     Config
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a Watcher. Call Run to start watching; Run blocks until ctx
// is cancelled or the underlying fsnotify watcher fails irrecoverably.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("watch: Root is required")
	}
	if cfg.Sync == nil {
		return nil, fmt.Errorf("watch: Sync is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{cfg: cfg, watcher: fw}
	if err := w.addRecursive(cfg.Root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if w.ignored(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("watch: failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) ignored(path string, isDir bool) bool {
	if w.cfg.Ignore == nil || path == w.cfg.Root {
		return false
	}
	return w.cfg.Ignore.ShouldIgnore(path, isDir)
}

// Run processes fsnotify events until ctx is cancelled. New directories
// created under Root are watched automatically.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Warn("filesystem watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()

	if w.ignored(event.Name, isDir) {
		return
	}

	if event.Op&fsnotify.Create != 0 && isDir {
		if err := w.watcher.Add(event.Name); err != nil {
			w.cfg.Logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.Debounce, func() {
		if err := w.cfg.Sync(ctx); err != nil {
			w.cfg.Logger.Warn("triggered sync pass failed", zap.Error(err))
		}
	})
}
