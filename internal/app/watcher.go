package app

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/justyntemme/dropzone/internal/debug"
)

// ConfigWatcher watches the config file and notifies when it should be
// reloaded. It watches the directory so editors that save by renaming a
// temporary file are still seen.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	path       string        // Cleaned config file path
	notify     chan struct{} // Reload signals, coalesced
	done       chan struct{} // Shutdown signal
	closeOnce  sync.Once
	debounceMs int // Debounce interval in milliseconds
}

// NewConfigWatcher starts watching the config file at path
func NewConfigWatcher(path string, debounceMs int) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	if debounceMs <= 0 {
		debounceMs = 200 // Default 200ms debounce
	}

	cw := &ConfigWatcher{
		watcher:    w,
		path:       path,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		debounceMs: debounceMs,
	}
	debug.Log(debug.CONFIG, "watching %s", path)

	go cw.run()
	return cw, nil
}

// run processes filesystem events with debouncing
func (cw *ConfigWatcher) run() {
	var lastEvent time.Time
	pending := false
	debounce := time.Duration(cw.debounceMs) * time.Millisecond
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-cw.done:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			// Writes, atomic-save renames and recreation all mean a reload
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				lastEvent = time.Now()
				pending = true
				debug.Log(debug.CONFIG, "FSNotify event: %s on %s", event.Op, event.Name)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			debug.Log(debug.CONFIG, "FSNotify error: %v", err)

		case now := <-ticker.C:
			if !pending || now.Sub(lastEvent) < debounce {
				continue
			}
			pending = false
			select {
			case cw.notify <- struct{}{}:
				debug.Log(debug.CONFIG, "config change notification")
			default:
				// A reload is already queued
			}
		}
	}
}

// Notify returns the channel that receives reload signals
func (cw *ConfigWatcher) Notify() <-chan struct{} {
	return cw.notify
}

// Close shuts down the watcher. It is safe to call more than once.
func (cw *ConfigWatcher) Close() error {
	var err error
	cw.closeOnce.Do(func() {
		close(cw.done)
		err = cw.watcher.Close()
	})
	return err
}
