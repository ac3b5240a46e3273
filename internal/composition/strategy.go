// Package composition decides which components of a composite constraint
// are eligible for injection. There is one Strategy per CompositionType.
//
// Strategies never infer progress from trigger matches: completion of a
// sequential step, a hierarchy level or a layer is an explicit signal
// supplied by the caller as models.CompositeProgress.
package composition

import (
	"fmt"
	"sort"

	"github.com/nvandessel/nudge/internal/models"
)

// Strategy resolves one composition type.
type Strategy interface {
	Type() models.CompositionType

	// Resolve returns which of the matched components are eligible. matched
	// must only hold components of comp; callers pass the ones whose
	// trigger activated.
	Resolve(comp models.Composition, matched []models.Constraint, progress models.CompositeProgress) (Resolution, error)
}

// SuppressReason explains why a matched component was held back.
type SuppressReason string

const (
	SuppressWaiting        SuppressReason = "waiting"         // an earlier sequence step is open
	SuppressStepCompleted  SuppressReason = "step-completed"  // the step was already signalled complete
	SuppressLevelLocked    SuppressReason = "level-locked"    // an earlier level or layer is open
	SuppressLevelCompleted SuppressReason = "level-completed" // the level was already signalled complete
	SuppressAllCompleted   SuppressReason = "all-completed"   // every step or level is complete
)

// Resolution is a strategy's decision for one composite.
type Resolution struct {
	Type models.CompositionType `json:"type"`

	// Eligible component ids, in the strategy's order.
	Eligible []models.ConstraintID `json:"eligible"`

	// Suppressed maps held-back matched components to the reason.
	Suppressed map[models.ConstraintID]SuppressReason `json:"suppressed,omitempty"`

	// NextStep is the open sequential step, if any.
	NextStep models.ConstraintID `json:"next_step,omitempty"`

	// Levels lists the levels components were drawn from.
	Levels []int `json:"levels,omitempty"`
}

// IsEligible reports whether id is in the eligible set.
func (r Resolution) IsEligible(id models.ConstraintID) bool {
	for _, e := range r.Eligible {
		if e == id {
			return true
		}
	}
	return false
}

func (r *Resolution) suppress(id models.ConstraintID, reason SuppressReason) {
	if r.Suppressed == nil {
		r.Suppressed = make(map[models.ConstraintID]SuppressReason)
	}
	r.Suppressed[id] = reason
}

var strategies = map[models.CompositionType]Strategy{
	models.CompositionSequential:   Sequential{},
	models.CompositionParallel:     Parallel{},
	models.CompositionHierarchical: Hierarchical{},
	models.CompositionProgressive:  Progressive{},
	models.CompositionLayered:      Layered{},
}

// For returns the strategy of a composition type.
func For(t models.CompositionType) (Strategy, error) {
	s, ok := strategies[t]
	if !ok {
		return nil, &models.ValidationError{Field: "composition_type", Issue: "unknown", Detail: string(t)}
	}
	return s, nil
}

// Resolve resolves a composite constraint with the strategy of its type.
func Resolve(composite models.Constraint, matched []models.Constraint, progress models.CompositeProgress) (Resolution, error) {
	if !composite.IsComposite() {
		return Resolution{}, &models.ArgumentError{Name: "composite", Reason: fmt.Sprintf("%s is not a composite", composite.ID)}
	}
	s, err := For(composite.Composition.Type)
	if err != nil {
		return Resolution{}, err
	}
	return s.Resolve(*composite.Composition, matched, progress)
}

// Parallel makes every matched component eligible at once.
type Parallel struct{}

func (Parallel) Type() models.CompositionType { return models.CompositionParallel }

func (Parallel) Resolve(comp models.Composition, matched []models.Constraint, _ models.CompositeProgress) (Resolution, error) {
	if err := checkComposition(comp, models.CompositionParallel); err != nil {
		return Resolution{}, err
	}
	res := Resolution{Type: models.CompositionParallel, Eligible: []models.ConstraintID{}}
	for _, c := range byPriority(matched) {
		res.Eligible = append(res.Eligible, c.ID)
	}
	return res, nil
}

func checkComposition(comp models.Composition, want models.CompositionType) error {
	if comp.Type != want {
		return &models.ArgumentError{Name: "composition", Reason: fmt.Sprintf("type %s resolved as %s", comp.Type, want)}
	}
	return comp.Validate("")
}

// byPriority returns a copy of cs sorted by priority desc, then id.
func byPriority(cs []models.Constraint) []models.Constraint {
	out := append([]models.Constraint(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
