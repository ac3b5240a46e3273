// Package session tracks per-session state for the nudge server: the
// interaction counter that drives the cadence scheduler, which constraints
// were injected, and the composition progress signalled by the agent.
//
// This is the only mutable state in nudge. Each State is owned by a
// Registry and guarded by its own lock; the engine itself only ever sees
// immutable snapshots taken from it.
//
// All public methods are safe for concurrent use.
package session

import (
	"sync"
	"time"

	"github.com/nvandessel/nudge/internal/models"
)

// InjectionRecord tracks a constraint's injections within one session.
type InjectionRecord struct {
	ConstraintID    models.ConstraintID `json:"constraint_id"`
	Count           int                 `json:"count"`            // how many times injected this session
	LastInteraction int                 `json:"last_interaction"` // interaction number when last injected
	InjectedAt      time.Time           `json:"injected_at"`
}

// State tracks one session.
type State struct {
	mu          sync.RWMutex
	id          string
	interaction int
	injections  map[models.ConstraintID]*InjectionRecord
	progress    map[models.ConstraintID]*compositeState
	nowFunc     func() time.Time
}

type compositeState struct {
	components map[models.ConstraintID]bool
	completed  map[int]bool
	unlocked   map[int]bool
}

// NewState creates an empty session state.
func NewState(id string) *State {
	return &State{
		id:         id,
		injections: make(map[models.ConstraintID]*InjectionRecord),
		progress:   make(map[models.ConstraintID]*compositeState),
		nowFunc:    time.Now,
	}
}

// ID returns the session id.
func (s *State) ID() string {
	return s.id
}

// NextInteraction advances the interaction counter and returns the new,
// 1-based interaction number.
func (s *State) NextInteraction() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interaction++
	return s.interaction
}

// Interaction returns the current interaction number (0 before the first).
func (s *State) Interaction() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.interaction
}

// RecordInjection records that the constraints were injected at the given
// interaction. The interaction is the one the selection ran for, not the
// live counter, which another call may already have advanced.
// LastInteraction never moves backwards.
func (s *State) RecordInjection(interaction int, ids ...models.ConstraintID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for _, id := range ids {
		rec, exists := s.injections[id]
		if !exists {
			rec = &InjectionRecord{ConstraintID: id}
			s.injections[id] = rec
		}
		rec.Count++
		if interaction > rec.LastInteraction {
			rec.LastInteraction = interaction
		}
		rec.InjectedAt = now
	}
}

// GetInjection returns the injection record for a constraint, or nil if it
// was never injected.
func (s *State) GetInjection(id models.ConstraintID) *InjectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.injections[id]
	if !exists {
		return nil
	}

	// Return a copy to avoid data races on the returned value.
	cp := *rec
	return &cp
}

// CompleteComponent signals that a step of a composite was completed.
func (s *State) CompleteComponent(composite, component models.ConstraintID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.composite(composite).components[component] = true
}

// CompleteLevel signals that a level (or layer) of a composite was completed.
func (s *State) CompleteLevel(composite models.ConstraintID, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.composite(composite).completed[level] = true
}

// UnlockLevel explicitly unlocks a level of a progressive composite.
func (s *State) UnlockLevel(composite models.ConstraintID, level int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.composite(composite).unlocked[level] = true
}

// Progress returns a snapshot of all composition progress. The snapshot
// shares nothing with the state.
func (s *State) Progress() models.CompositionProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(models.CompositionProgress, len(s.progress))
	for id, cs := range s.progress {
		out[id] = models.CompositeProgress{
			CompletedComponents: copyIDSet(cs.components),
			CompletedLevels:     copyIntSet(cs.completed),
			UnlockedLevels:      copyIntSet(cs.unlocked),
		}
	}
	return out
}

// Reset clears all session state (for testing or session restart).
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interaction = 0
	s.injections = make(map[models.ConstraintID]*InjectionRecord)
	s.progress = make(map[models.ConstraintID]*compositeState)
}

// composite returns the state of a composite, creating it. Callers hold mu.
func (s *State) composite(id models.ConstraintID) *compositeState {
	cs, ok := s.progress[id]
	if !ok {
		cs = &compositeState{
			components: make(map[models.ConstraintID]bool),
			completed:  make(map[int]bool),
			unlocked:   make(map[int]bool),
		}
		s.progress[id] = cs
	}
	return cs
}

func copyIDSet(in map[models.ConstraintID]bool) map[models.ConstraintID]bool {
	out := make(map[models.ConstraintID]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyIntSet(in map[int]bool) map[int]bool {
	out := make(map[int]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
