// Package watcher turns file changes in a content directory into sync events.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/searchsync/internal/content"
	"github.com/hyperjump/searchsync/internal/indexer"
	"github.com/hyperjump/searchsync/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Sink receives the lifecycle events derived from file changes.
type Sink interface {
	OnSaved(ctx context.Context, item *models.ContentItem, ec indexer.EditContext) indexer.Outcome
	OnDeleted(ctx context.Context, contentID string) indexer.Outcome
}

// Watcher watches a file store directory. Writes are debounced per path before the
// file is re-read and saved; removals and renames delete the item right away.
type Watcher struct {
	store    *content.FileStore
	sink     Sink
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	ctx     context.Context
	started bool

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for file events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a path must stay quiet before it is saved.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over store's directory that reports to sink.
func NewWatcher(store *content.FileStore, sink Sink, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:    store,
		sink:     sink,
		debounce: defaultDebounce,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start starts watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	if err := w.addTreeLocked(w.store.Dir()); err != nil {
		_ = fsw.Close()
		w.fsw = nil
		return err
	}
	w.started = true
	w.logger.Debug("watcher starting", zap.String("dir", w.store.Dir()))
	go w.run(ctx, fsw)
	return nil
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
		if content.IsContentFile(path) {
			w.remove(path)
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if content.IsContentFile(path) {
			w.schedule(path)
		}
	}
}

// handleNewDirectory watches a directory created (or moved) under the root and saves its files.
func (w *Watcher) handleNewDirectory(dir string) {
	if hidden(dir) {
		return
	}
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	if err := w.addTreeLocked(dir); err != nil {
		w.logger.Warn("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	w.mu.Unlock()

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && hidden(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if content.IsContentFile(path) {
			w.schedule(path)
		}
		return nil
	})
}

func (w *Watcher) addTreeLocked(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.store.Dir() && hidden(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		w.save(ctx, path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) save(ctx context.Context, path string) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	item, err := w.store.ReadFile(path)
	if err != nil {
		w.logger.Warn("watcher could not read content file", zap.String("path", path), zap.Error(err))
		return
	}
	o := w.sink.OnSaved(ctx, item, indexer.EditContext{})
	w.logger.Debug("watcher saved", zap.String("path", path), zap.String("content_id", item.ID), zap.String("outcome", string(o)))
}

func (w *Watcher) remove(path string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	id := w.store.IDForPath(path)
	w.store.Forget(path)
	o := w.sink.OnDeleted(ctx, id)
	w.logger.Debug("watcher removed", zap.String("path", path), zap.String("content_id", id), zap.String("outcome", string(o)))
}

// Stop stops the watcher and drops pending saves.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
