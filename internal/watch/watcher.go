// Package watch rebuilds the post index when files in the pages directory
// change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quill/internal/storage"
)

// DefaultDebounce is how long the watcher waits for the event stream to go
// quiet before rebuilding.
const DefaultDebounce = 200 * time.Millisecond

// Event kinds passed to EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called once per changed file after a successful rebuild.
type EventCallback func(kind string, file string)

// RebuildFunc regenerates the index.
type RebuildFunc func(ctx context.Context) error

// Watch starts an fsnotify watcher on dir and runs rebuild after each burst
// of source file changes until ctx is cancelled. dir is created when it does
// not exist yet. Subdirectories are ignored because only top-level files are
// indexed.
func Watch(ctx context.Context, dir string, logger *slog.Logger, rebuild RebuildFunc, cb EventCallback) error {
	return watch(ctx, dir, DefaultDebounce, logger, rebuild, cb)
}

func watch(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger, rebuild RebuildFunc, cb EventCallback) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", dir))

	pending := make(map[string]string)
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
			return
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			timer, timerCh = nil, nil
			flush(ctx, pending, logger, rebuild, cb)
			pending = make(map[string]string)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, storage.SourceExt) || strings.HasPrefix(name, ".") {
				continue
			}
			kind := kindOf(ev.Op)
			if kind == "" {
				continue
			}
			pending[name] = merge(pending[name], kind)
			logger.Debug("watcher: change", slog.String("file", name), slog.String("op", kind))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func flush(ctx context.Context, pending map[string]string, logger *slog.Logger, rebuild RebuildFunc, cb EventCallback) {
	if len(pending) == 0 {
		return
	}
	if err := rebuild(ctx); err != nil {
		logger.Warn("watcher: rebuild failed", slog.Int("changes", len(pending)), slog.String("error", err.Error()))
		return
	}
	if cb == nil {
		return
	}
	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		cb(pending[f], f)
	}
}

func kindOf(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return KindCreated
	case op&fsnotify.Write != 0:
		return KindUpdated
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return KindDeleted
	}
	return ""
}

// merge folds a new event into the kind already pending for a file. A file
// created and then written in one burst is still reported as created, and
// one that was deleted and recreated is reported as updated.
func merge(prev, next string) string {
	switch {
	case prev == "":
		return next
	case prev == KindCreated && next == KindUpdated:
		return KindCreated
	case prev == KindCreated && next == KindDeleted:
		return KindDeleted
	case prev == KindDeleted && next == KindCreated:
		return KindUpdated
	}
	return next
}
