// Package watch reports source edits in the unit the learner is working on.
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 300 * time.Millisecond

// Watcher follows one directory at a time. Bursts of writes are coalesced
// into a single notification once the directory has been quiet for the
// debounce interval.
type Watcher struct {
	debounce time.Duration

	mu  sync.Mutex
	dir string

	changes chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
}

func New(debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		watcher:  fw,
	}
	go w.loop()
	return w, nil
}

// Follow switches the watched directory. Following the current directory
// again is a no-op.
func (w *Watcher) Follow(dir string) error {
	dir = filepath.Clean(dir)
	w.mu.Lock()
	defer w.mu.Unlock()
	if dir == w.dir {
		return nil
	}
	if w.dir != "" {
		_ = w.watcher.Remove(w.dir)
		w.dir = ""
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dir = dir
	return nil
}

// Changes never blocks the sender: at most one notification is pending.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var last time.Time
	pending := false
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isSource(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending = true
				last = time.Now()
			}

		case <-ticker.C:
			if pending && time.Since(last) >= w.debounce {
				pending = false
				w.emit()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) emit() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func isSource(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return strings.HasSuffix(base, ".go") || base == "go.mod"
}
