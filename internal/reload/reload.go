// Package reload watches the daemon's config file for changes and
// invokes a callback when it is rewritten.
package reload

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a single config file and calls OnChange after it
// settles (debounced, since editors often rewrite a file as
// create+write+rename rather than one clean write).
type Watcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger
	fsw      *fsnotify.Watcher

	onChange func()
	done     chan struct{}
}

// New creates a Watcher for path. Call Start to begin watching.
func New(path string, onChange func(), log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the containing directory rather than the file itself: editors
	// frequently replace a file via rename, which drops the watch an
	// fsnotify.Add on the file itself would have held.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		debounce: 250 * time.Millisecond,
		log:      log,
		fsw:      fsw,
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Start begins the watch goroutine. Call Close to stop it.
func (w *Watcher) Start() {
	go w.routine()
}

// Close stops watching and releases the underlying inotify/kqueue
// handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) routine() {
	var pending *time.Timer

	for {
		select {
		case <-w.done:
			if pending != nil {
				pending.Stop()
			}
			return

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("config watch error", "error", err)

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(w.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, w.onChange)
		}
	}
}
