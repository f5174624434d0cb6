package server

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchedExtensions are the file types that trigger a reload.
var WatchedExtensions = map[string]bool{
	".js":   true,
	".css":  true,
	".yaml": true,
	".yml":  true,
}

// debounceInterval coalesces the burst of events an editor save produces.
const debounceInterval = 100 * time.Millisecond

// Watcher watches widget sources for changes and triggers reload.
type Watcher struct {
	watcher  *fsnotify.Watcher
	rootDir  string
	onReload func(filePath string) error
	done     chan struct{}
	debug    bool

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a new file watcher for the given directory.
func NewWatcher(rootDir string, onReload func(string) error, debug bool) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsWatcher,
		rootDir:  rootDir,
		onReload: onReload,
		done:     make(chan struct{}),
		debug:    debug,
		pending:  make(map[string]*time.Timer),
	}

	if err := w.addDirectoryRecursive(rootDir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// addDirectoryRecursive adds a directory and all its subdirectories to the watcher.
func (w *Watcher) addDirectoryRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip hidden directories like .git
		if info.IsDir() {
			if path != dir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}

			if err := w.watcher.Add(path); err != nil {
				return err
			}

			if w.debug {
				log.Printf("[Watch] Added directory: %s", path)
			}
		}

		return nil
	})
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(event)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Watch] Error: %v", err)

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) handle(event fsnotify.Event) {
	// Editors that save by rename show up as Create
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirectoryRecursive(event.Name); err != nil {
				log.Printf("[Watch] Failed to watch %s: %v", event.Name, err)
			}
			return
		}
	}

	if !WatchedExtensions[filepath.Ext(event.Name)] {
		return
	}

	relPath, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		relPath = event.Name
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[relPath]; ok {
		t.Reset(debounceInterval)
		return
	}
	w.pending[relPath] = time.AfterFunc(debounceInterval, func() {
		w.mu.Lock()
		delete(w.pending, relPath)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		if w.debug {
			log.Printf("[Watch] File changed: %s", relPath)
		}
		if err := w.onReload(relPath); err != nil {
			log.Printf("[Watch] Reload failed for %s: %v", relPath, err)
		}
	})
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)

	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	return w.watcher.Close()
}
