package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/ai-navigator/navigator/internal/throttle"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the directory when its catalog file changes on disk. Editors and
// deploy tools tend to produce several events per save (truncate, write, chmod,
// rename), so reloads go through a throttle: the first change reloads at once and
// the rest of the burst collapses into one trailing reload.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	reloader *throttle.Throttler
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWatcher watches the directory containing path. The directory is watched
// rather than the file because atomic saves replace the file's inode. reload is
// called at most once per window.
func NewWatcher(path string, window time.Duration, reload func(), opts ...throttle.Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		fsw:      fsw,
		reloader: throttle.New(reload, window, opts...),
		stopChan: make(chan struct{}),
	}, nil
}

// ReloadFunc adapts a Directory into a Watcher callback that logs failures and
// reports each outcome to observe (which may be nil).
func ReloadFunc(dir *Directory, observe func(err error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := dir.Reload(ctx)
		if err != nil {
			slog.Error("catalog reload failed", "error", err)
		} else {
			slog.Info("catalog reloaded", "sites", dir.Len())
		}
		if observe != nil {
			observe(err)
		}
	}
}

// Start processes file events until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	slog.Info("catalog watcher started", "path", w.path)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				slog.Debug("catalog file changed", "op", ev.Op.String())
				w.reloader.Call()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("catalog watcher error", "error", err)
		case <-w.stopChan:
			slog.Info("catalog watcher stopped")
			return
		case <-ctx.Done():
			slog.Info("catalog watcher context cancelled")
			return
		}
	}
}

// Stop ends event processing and cancels any pending reload. It is safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.reloader.Pending() {
			slog.Debug("discarding pending catalog reload")
		}
		w.reloader.Stop()
		w.fsw.Close()
	})
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
