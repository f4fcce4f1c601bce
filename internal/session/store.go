package session

import (
	"sort"
	"sync"
)

// SessionStore holds live sessions. Implementations must be safe for
// concurrent use.
type SessionStore interface {
	Get(id string) (*Session, bool)
	Put(s *Session)
	Delete(id string) bool
	List() []*Session
}

// MemoryStore is the in-process SessionStore. Sessions are runtime
// objects (goroutines, channels, substrate handles), so they live in
// memory; durable experiment records go through the persistence layer
// separately.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *MemoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Delete removes the session and reports whether it existed. The caller
// is responsible for stopping the session first.
func (m *MemoryStore) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// List returns all sessions ordered oldest-first, ties broken by ID.
func (m *MemoryStore) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
