package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// DefaultID is used when a caller does not name its session.
const DefaultID = "default"

// Registry owns the session states of one server, keyed by session id.
// States are only reachable through it.
type Registry struct {
	mu     sync.Mutex
	states map[string]*State
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*State)}
}

// NewSessionID returns a fresh random id. The server tags its logs with one
// per process; sessions themselves are keyed by the id the client sends.
func NewSessionID() string {
	return uuid.NewString()
}

// Get returns the state for id, creating it on first use. A blank id maps
// to DefaultID.
func (r *Registry) Get(id string) *State {
	if id == "" {
		id = DefaultID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[id]
	if !ok {
		s = NewState(id)
		r.states[id] = s
	}
	return s
}

// Lookup returns the state for id without creating it.
func (r *Registry) Lookup(id string) (*State, bool) {
	if id == "" {
		id = DefaultID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[id]
	return s, ok
}

// Delete drops a session.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, id)
}

// IDs returns the known session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
