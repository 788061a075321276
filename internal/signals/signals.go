// Package signals lets a running orchestration be stopped from outside
// the process through a file-based signal, watched with fsnotify.
package signals

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// stopFile is the filename whose presence requests a graceful stop.
const stopFile = "stop"

// Dir returns the signals directory for a working directory.
func Dir(workDir string) string {
	return filepath.Join(workDir, ".apiflow", "signals")
}

// Watcher monitors a signals directory for a stop request. The
// orchestrator polls ShouldStop between tasks; an existing stop file
// at startup counts as an immediate request.
type Watcher struct {
	dir string

	mu         sync.RWMutex
	stopSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher over the signals directory for workDir,
// creating the directory if needed. When the fsnotify watcher cannot
// be created the Watcher still works off the initial filesystem check.
func NewWatcher(workDir string) (*Watcher, error) {
	dir := Dir(workDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:  dir,
		done: make(chan struct{}),
	}

	// A stop file left over from before the run starts still counts.
	if _, err := os.Stat(filepath.Join(dir, stopFile)); err == nil {
		w.stopSignal = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return w, nil
	}
	w.watcher = fsw
	go w.watch()

	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != stopFile {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.mu.Lock()
				w.stopSignal = true
				w.mu.Unlock()
			}
		case <-w.watcher.Errors:
			// Keep watching.
		}
	}
}

// ShouldStop reports whether a stop has been requested.
func (w *Watcher) ShouldStop() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopSignal
}

// Close stops watching and removes a consumed stop file so the next
// run starts clean.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
	_ = os.Remove(filepath.Join(w.dir, stopFile))
	return nil
}

// RequestStop writes the stop file for workDir, asking any running
// orchestration there to finish its current task and summarize.
func RequestStop(workDir string) error {
	dir := Dir(workDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, stopFile), []byte("stop\n"), 0644)
}
