package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/maestro-ai/maestro/internal/logging"
)

// Watcher feeds filesystem change events into the incremental indexer.
// Events are debounced per pass: a burst of writes triggers one sync
// after the quiet period. Change classification stays hash-based; the
// watcher is only a trigger.
type Watcher struct {
	root      string
	validator PathValidator
	sync      *IncrementalIndexer
	debounce  time.Duration
	logger    *logging.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewWatcher builds a watcher over the indexing root. debounce below
// 50ms is raised to 250ms.
func NewWatcher(root string, validator PathValidator, inc *IncrementalIndexer, debounce time.Duration, logger *logging.Logger) *Watcher {
	if debounce < 50*time.Millisecond {
		debounce = 250 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		root:      root,
		validator: validator,
		sync:      inc,
		debounce:  debounce,
		logger:    logger,
		pending:   make(map[string]struct{}),
	}
}

// Run watches until the context is cancelled. Directories are watched
// recursively; new directories are added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fsw.Close() }()

	absRoot, err := filepath.Abs(w.root)
	if err != nil {
		return err
	}
	if err := w.addTree(fsw, absRoot, absRoot); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fsw, absRoot, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, absRoot string, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	rel, err := filepath.Rel(absRoot, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if ok, _ := w.validator.Check(rel, info); ok {
				_ = w.addTree(fsw, absRoot, event.Name)
			}
			return
		}
	}
	if info, err := os.Lstat(event.Name); err == nil {
		if ok, _ := w.validator.Check(rel, info); !ok {
			return
		}
	}
	// Removed paths cannot be validated against the filesystem; let
	// change detection sort them out.
	w.schedule(ctx, rel)
}

func (w *Watcher) schedule(ctx context.Context, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[rel] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 || ctx.Err() != nil {
		return
	}
	result, err := w.sync.SyncPaths(ctx, paths)
	if err != nil {
		w.logger.Warn("watch-triggered sync failed", "error", err)
		return
	}
	w.logger.Info("watch sync complete",
		"indexed", result.Succeeded, "deleted", result.Deleted, "failed", len(result.Failed))
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, absRoot, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(absRoot, p)
		if rerr == nil && rel != "." {
			info, _ := d.Info()
			if ok, _ := w.validator.Check(filepath.ToSlash(rel), info); !ok {
				return filepath.SkipDir
			}
		}
		if werr := fsw.Add(p); werr != nil {
			w.logger.Warn("cannot watch directory", "path", p, "error", werr)
		}
		return nil
	})
}
