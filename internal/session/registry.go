package session

import (
	"sync"

	"github.com/stefan2811/port-16/internal/metrics"
)

// Registry is the process-wide mapping from charger identity to its live
// session. It is the only shared mutable structure in the simulator and is
// safe for concurrent use by the connection path and in-flight commands.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register stores the session under its identity, replacing any previous one.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	count := len(r.sessions)
	r.mu.Unlock()
	metrics.ObserveSessions(count)
}

// Lookup returns the session for id, if connected.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove drops the session for id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()
	metrics.ObserveSessions(count)
}
