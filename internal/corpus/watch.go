package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long a file must be quiet before it is reloaded.
// Editors often write a file in several steps.
const watchSettle = 150 * time.Millisecond

// Watcher reloads a corpus file whenever it changes.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher watches path. The parent directory is watched so that
// editors replacing the file by rename are noticed.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, watcher: w}, nil
}

// Run calls fn with the reloaded text after every settled change until ctx
// is done. Load errors are passed to fn and do not stop the watch.
func (w *Watcher) Run(ctx context.Context, fn func(text string, err error)) error {
	defer func() {
		if cerr := w.watcher.Close(); cerr != nil {
			// Best-effort close once watching stops.
			_ = cerr
		}
	}()

	timer := time.NewTimer(watchSettle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
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
			timer.Reset(watchSettle)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			fn("", fmt.Errorf("watch corpus: %w", err))
		case <-timer.C:
			text, err := Load(w.path)
			fn(text, err)
		}
	}
}
