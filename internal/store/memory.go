// internal/store/memory.go
//
// In-memory registry of live sessions keyed by match code.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent lookups, exclusive writes).
//   - State is lost when the process restarts; identity bindings are
//     mirrored to the durable store separately.

package store

import (
	"sync"

	"github.com/robalobadob/wordduel/internal/game"
	"github.com/robalobadob/wordduel/internal/session"
)

// Matches maps match codes to their sessions.
type Matches struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewMatches returns an empty registry.
func NewMatches() *Matches {
	return &Matches{sessions: make(map[string]*session.Session)}
}

// Put adds or replaces s under its code.
func (m *Matches) Put(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Code()] = s
}

// Get looks up a session by code.
func (m *Matches) Get(code string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[code]; ok {
		return s, nil
	}
	return nil, game.NotFound("match %s not found", code)
}

// Has reports whether code is taken.
func (m *Matches) Has(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[code]
	return ok
}

// Delete removes code.
func (m *Matches) Delete(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, code)
}

// Len counts live sessions.
func (m *Matches) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
