package model

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a model file whenever it changes on disk and hands the
// fresh registry to a callback. Editors often replace files instead of
// writing in place, so the parent directory is watched and events are
// filtered by file name.
type Watcher struct {
	path      string
	separator string
	debounce  time.Duration
	onChange  func(*Registry, error)
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
}

// NewWatcher creates a watcher for path. onChange receives either the newly
// loaded registry or the load error.
func NewWatcher(path string, onChange func(*Registry, error), logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve model path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		path:     abs,
		debounce: 200 * time.Millisecond,
		onChange: onChange,
		logger:   logger,
		watcher:  fw,
	}, nil
}

// SetSeparator sets the fallback separator for model files that declare
// none. It must be called before Run.
func (w *Watcher) SetSeparator(separator string) { w.separator = separator }

// Run processes file events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("model watcher error", "path", w.path, "error", err)

		case <-fire:
			fire = nil
			reg, err := LoadWithSeparator(w.path, w.separator)
			if err != nil {
				w.logger.Warn("model reload failed", "path", w.path, "error", err)
			} else {
				w.logger.Info("model reloaded", "path", w.path, "sectors", len(reg.Sectors()))
			}
			w.onChange(reg, err)
		}
	}
}

// Close stops watching. Run also closes the watcher when its context ends.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
