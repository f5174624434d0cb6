package app

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
)

//go:embed widgets/*
var bundledFS embed.FS

// Sources holds the ESM and CSS text of the example widgets. Bundled copies
// are always available; files in an override directory replace them and can
// be reloaded while the server runs.
type Sources struct {
	mu    sync.RWMutex
	dir   string
	files map[string]string
}

// NewSources loads the bundled widget sources, then any overrides from dir.
// An empty dir means bundled sources only.
func NewSources(dir string) (*Sources, error) {
	s := &Sources{dir: dir}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the override directory, or "".
func (s *Sources) Dir() string {
	return s.dir
}

// Get returns the source text of the named file (e.g. "counter.js").
func (s *Sources) Get(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files[name]
}

// Reload re-reads bundled sources and overrides. Missing override files fall
// back to the bundled copy.
func (s *Sources) Reload() error {
	files := make(map[string]string)

	sub, err := fs.Sub(bundledFS, "widgets")
	if err != nil {
		return err
	}
	if err := readAll(sub, files); err != nil {
		return fmt.Errorf("failed to read bundled widgets: %w", err)
	}

	if s.dir != "" {
		info, err := os.Stat(s.dir)
		if err != nil {
			return fmt.Errorf("widgets directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("widgets directory %s is not a directory", s.dir)
		}
		if err := readAll(os.DirFS(s.dir), files); err != nil {
			return fmt.Errorf("failed to read widgets from %s: %w", s.dir, err)
		}
	}

	s.mu.Lock()
	s.files = files
	s.mu.Unlock()
	return nil
}

// readAll reads every .js and .css file at the top level of fsys into files.
func readAll(fsys fs.FS, files map[string]string) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".js" && ext != ".css" {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return err
		}
		files[e.Name()] = string(data)
	}
	return nil
}

// OnChange reloads sources when a watched file changes. It matches the
// callback signature of the server's file watcher.
func (s *Sources) OnChange(path string) error {
	if err := s.Reload(); err != nil {
		return err
	}
	log.Printf("[Widgets] Reloaded sources (%s changed)", path)
	return nil
}
