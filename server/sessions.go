package server

import (
	"sync"

	"github.com/calassist/calassist/core"
)

// sessionRegistry tracks the sessions of live websocket connections in a
// process local map. It is safe for concurrent access. Connections register
// on upgrade and unregister on disconnect; shutdown cancels whatever is
// still in flight.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*core.Session)}
}

func (r *sessionRegistry) add(sess *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = sess
}

func (r *sessionRegistry) remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

func (r *sessionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// cancelAll cancels every in-flight run and waits for each to wind down.
func (r *sessionRegistry) cancelAll() {
	r.mu.RLock()
	pending := make([]<-chan struct{}, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if done := sess.CancelActive(); done != nil {
			pending = append(pending, done)
		}
	}
	r.mu.RUnlock()
	for _, done := range pending {
		<-done
	}
}
