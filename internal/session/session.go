// Package session keeps the per-browser-session state that survives between
// script runs: element values reported by sliders and component frontends,
// and which component frontends have completed the ready handshake.
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/livetemplate/widgetbridge/internal/page"
)

// Session is the state of one browser tab. Runs of the same session are
// serialized; sessions never share state.
type Session struct {
	ID      string
	Page    string // Route path the session renders
	Created time.Time

	store *page.MemoryStore

	mu    sync.Mutex // Held for the duration of a run
	runs  int
	debug bool

	readyMu sync.RWMutex
	ready   map[string]bool
}

// New creates a session for the page at path.
func New(path string, debug bool) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Page:    path,
		Created: time.Now(),
		store:   page.NewMemoryStore(),
		ready:   make(map[string]bool),
		debug:   debug,
	}
}

// Value implements page.Store.
func (s *Session) Value(id string) (json.RawMessage, bool) {
	return s.store.Value(id)
}

// SetValue implements page.Store.
func (s *Session) SetValue(id string, v json.RawMessage) {
	s.store.SetValue(id, v)
}

// Triggered implements page.Store.
func (s *Session) Triggered(id string) bool {
	return s.store.Triggered(id)
}

// MarkReady records that the frontend for component id has completed the
// ready handshake.
func (s *Session) MarkReady(id string) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready[id] = true
}

// Ready reports whether the frontend for component id is live.
func (s *Session) Ready(id string) bool {
	s.readyMu.RLock()
	defer s.readyMu.RUnlock()
	return s.ready[id]
}

// RunResult is the outcome of one script run.
type RunResult struct {
	HTML     string
	Err      error // Script error; already rendered as an exception element
	Duration time.Duration
	Run      int
}

// Rerun executes script with a fresh render context. trigger is the element
// whose event caused the run, or "" for the initial run.
func (s *Session) Rerun(script page.Script, trigger string) (RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	s.store.Trigger(trigger)
	defer s.store.Trigger("")

	ctx := page.New(s)
	scriptErr := page.Run(ctx, script)

	html, err := ctx.Render()
	if err != nil {
		return RunResult{}, fmt.Errorf("render session %s: %w", s.ID, err)
	}

	s.runs++
	res := RunResult{
		HTML:     html,
		Err:      scriptErr,
		Duration: time.Since(start),
		Run:      s.runs,
	}

	if s.debug {
		log.Printf("[Session] %s run #%d (trigger=%q) took %v", s.ID, res.Run, trigger, res.Duration)
	}
	if scriptErr != nil {
		log.Printf("[Session] %s script error: %v", s.ID, scriptErr)
	}
	return res, nil
}

// Runs returns how many times the script has run in this session.
func (s *Session) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Manager tracks live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	debug    bool
}

// NewManager creates an empty session manager.
func NewManager(debug bool) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		debug:    debug,
	}
}

// Create starts a new session for the page at path.
func (m *Manager) Create(path string) *Session {
	s := New(path, m.debug)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if m.debug {
		log.Printf("[Session] Created %s for %s", s.ID, path)
	}
	return s
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove forgets a session. Its state is discarded.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.debug {
		log.Printf("[Session] Removed %s", id)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Each calls fn for every live session.
func (m *Manager) Each(fn func(*Session)) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		fn(s)
	}
}
