package shaderflow

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher is a module that watches shader files on disk and relays a
// RecompileMessage when any of them change. Filesystem events arrive on
// a background goroutine and are debounced, but the relay itself always
// happens on the frame loop, so programs swap at frame boundaries only.
type Watcher struct {
	Base

	paths    []string
	debounce time.Duration

	fs      *fsnotify.Watcher
	pending atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for the given files or directories.
func NewWatcher(paths ...string) *Watcher {
	return &Watcher{paths: paths, debounce: 50 * time.Millisecond}
}

// SetDebounce changes the quiet period required after the last event
// before a reload fires. Editors often write a file several times in
// quick succession.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Build starts watching.
func (w *Watcher) Build(s *Scene) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("shaderflow: start watcher: %w", err)
	}
	for _, path := range w.paths {
		if err := fs.Add(path); err != nil {
			fs.Close()
			return fmt.Errorf("shaderflow: watch %s: %w", path, err)
		}
	}
	w.fs = fs
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.loop()
	Logger().Info("watching shader files", "paths", w.paths)
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) {
				continue
			}
			Logger().Debug("shader file changed", "path", event.Name, "op", event.Op)
			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() { w.pending.Store(true) })
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			Logger().Warn("watcher error", "error", err)
		}
	}
}

// Update relays a recompile when changes settled since the last frame.
func (w *Watcher) Update() error {
	if w.pending.Swap(false) {
		w.Scene().Relay(RecompileMessage{})
	}
	return nil
}

// Destroy stops the watch goroutine.
func (w *Watcher) Destroy() {
	if w.fs == nil {
		return
	}
	close(w.done)
	w.fs.Close()
	w.wg.Wait()
	w.fs = nil
}
