package page

import (
	"encoding/json"
	"sync"
)

// MemoryStore is an in-memory Store. The zero value is not usable; use
// NewMemoryStore.
type MemoryStore struct {
	mu        sync.RWMutex
	values    map[string]json.RawMessage
	triggered string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

// Value returns the stored value for id.
func (s *MemoryStore) Value(id string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[id]
	return v, ok
}

// SetValue stores v for id.
func (s *MemoryStore) SetValue(id string, v json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[id] = v
}

// Trigger records the element whose event starts the next run. An empty id
// means the run was not caused by an element event.
func (s *MemoryStore) Trigger(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggered = id
}

// Triggered reports whether id caused the current run.
func (s *MemoryStore) Triggered(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return id != "" && s.triggered == id
}

// Len returns the number of stored values.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
