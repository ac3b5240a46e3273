// Package selector combines the scheduler gate, trigger matching and
// composition rules into the final ranked list of constraints to inject.
//
// Selection never mutates its inputs and is idempotent: the same arguments
// always produce the same ordered output, so a transport may retry freely.
package selector

import (
	"sort"
	"strings"

	"github.com/nvandessel/nudge/internal/composition"
	"github.com/nvandessel/nudge/internal/library"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/scheduler"
	"github.com/nvandessel/nudge/internal/trigger"
)

// Selector orchestrates a selection. It holds only immutable collaborators
// and is safe for concurrent use.
type Selector struct {
	engine    *trigger.Engine
	scheduler *scheduler.Scheduler
}

// New creates a selector.
func New(engine *trigger.Engine, sched *scheduler.Scheduler) (*Selector, error) {
	if engine == nil {
		return nil, &models.ArgumentError{Name: "engine", Reason: "is nil"}
	}
	if sched == nil {
		return nil, &models.ArgumentError{Name: "scheduler", Reason: "is nil"}
	}
	return &Selector{engine: engine, scheduler: sched}, nil
}

// Engine returns the trigger engine.
func (s *Selector) Engine() *trigger.Engine {
	return s.engine
}

// Scheduler returns the cadence scheduler.
func (s *Selector) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// SelectConstraints returns at most topK constraints activated by ctx,
// ordered by priority desc then id. An empty result is not an error.
func (s *Selector) SelectConstraints(constraints []models.Constraint, ctx *models.TriggerContext, topK int) ([]models.Constraint, error) {
	if constraints == nil {
		return nil, &models.ArgumentError{Name: "constraints", Reason: "is nil"}
	}
	if ctx == nil {
		return nil, &models.ArgumentError{Name: "context", Reason: "is nil"}
	}
	if topK <= 0 {
		return nil, &models.ArgumentError{Name: "topK", Reason: "must be positive"}
	}
	activated := s.engine.Filter(constraints, ctx)
	sortByPriority(activated)
	return capped(activated, topK), nil
}

// SelectConstraintsByCategory is SelectConstraints for callers holding only
// a category.
func (s *Selector) SelectConstraintsByCategory(constraints []models.Constraint, category string, topK int) ([]models.Constraint, error) {
	if constraints == nil {
		return nil, &models.ArgumentError{Name: "constraints", Reason: "is nil"}
	}
	if strings.TrimSpace(category) == "" {
		return nil, &models.ArgumentError{Name: "category", Reason: "is blank"}
	}
	if topK <= 0 {
		return nil, &models.ArgumentError{Name: "topK", Reason: "must be positive"}
	}
	out := make([]models.Constraint, 0)
	for _, c := range constraints {
		if s.engine.MatchesCategory(c, category) {
			out = append(out, c)
		}
	}
	sortByPriority(out)
	return capped(out, topK), nil
}

// Suppression records a matched constraint held back by a composite.
type Suppression struct {
	ID        models.ConstraintID        `json:"id"`
	Composite models.ConstraintID        `json:"composite"`
	Reason    composition.SuppressReason `json:"reason"`
}

// Decision is the outcome of one interaction.
type Decision struct {
	Interaction int  `json:"interaction"`
	Inject      bool `json:"inject"`

	// NextInjection is the next injecting interaction after this one.
	NextInjection int `json:"next_injection"`

	// Constraints are the selected constraints, priority desc then id.
	// Only constraints carrying reminders are selected.
	Constraints []models.Constraint `json:"constraints"`

	// Scores holds the boosted confidence of every activated constraint.
	Scores map[models.ConstraintID]float64 `json:"scores,omitempty"`

	Suppressed   []Suppression                                  `json:"suppressed,omitempty"`
	Compositions map[models.ConstraintID]composition.Resolution `json:"compositions,omitempty"`
}

// IDs returns the selected ids in order.
func (d Decision) IDs() []models.ConstraintID {
	ids := make([]models.ConstraintID, len(d.Constraints))
	for i, c := range d.Constraints {
		ids[i] = c.ID
	}
	return ids
}

// Select runs the full pipeline for one interaction against a pack
// snapshot. Outside injection points the decision carries no constraints.
func (s *Selector) Select(pack *library.Pack, ctx *models.TriggerContext, progress models.CompositionProgress, topK int) (Decision, error) {
	if pack == nil {
		return Decision{}, &models.ArgumentError{Name: "pack", Reason: "is nil"}
	}
	if ctx == nil {
		return Decision{}, &models.ArgumentError{Name: "context", Reason: "is nil"}
	}
	if topK <= 0 {
		return Decision{}, &models.ArgumentError{Name: "topK", Reason: "must be positive"}
	}
	if ctx.Interaction < 1 {
		return Decision{}, &models.ArgumentError{Name: "context.interaction", Reason: "must be >= 1"}
	}

	d := Decision{
		Interaction:   ctx.Interaction,
		Inject:        s.scheduler.ShouldInject(ctx.Interaction),
		NextInjection: s.scheduler.NextInjection(ctx.Interaction),
		Constraints:   []models.Constraint{},
	}
	if !d.Inject {
		return d, nil
	}

	ranked := s.engine.Rank(pack.Constraints(), ctx)
	activated := make(map[models.ConstraintID]models.Constraint, len(ranked))
	d.Scores = make(map[models.ConstraintID]float64, len(ranked))
	for _, r := range ranked {
		activated[r.Constraint.ID] = r.Constraint
		d.Scores[r.Constraint.ID] = r.Score
	}

	suppressed, err := s.applyCompositions(pack, activated, progress, &d)
	if err != nil {
		return Decision{}, err
	}

	// A constraint without reminders (usually a composite) still gates its
	// components but has nothing to inject, so it never takes a top-K slot.
	candidates := make([]models.Constraint, 0, len(activated))
	for _, r := range ranked {
		if _, held := suppressed[r.Constraint.ID]; held || len(r.Constraint.Reminders) == 0 {
			continue
		}
		candidates = append(candidates, r.Constraint)
	}
	sortByPriority(candidates)
	d.Constraints = capped(candidates, topK)
	return d, nil
}

// applyCompositions resolves every composite with at least one activated
// component. A component is held back when any engaged composite does not
// make it eligible.
func (s *Selector) applyCompositions(
	pack *library.Pack,
	activated map[models.ConstraintID]models.Constraint,
	progress models.CompositionProgress,
	d *Decision,
) (map[models.ConstraintID]struct{}, error) {
	suppressed := make(map[models.ConstraintID]struct{})

	for _, composite := range pack.Composites() {
		var matched []models.Constraint
		for _, ref := range composite.Composition.Components {
			if c, ok := activated[ref.ID]; ok {
				matched = append(matched, c)
			}
		}
		if len(matched) == 0 {
			continue
		}

		res, err := composition.Resolve(composite, matched, progress.For(composite.ID))
		if err != nil {
			return nil, err
		}
		if d.Compositions == nil {
			d.Compositions = make(map[models.ConstraintID]composition.Resolution)
		}
		d.Compositions[composite.ID] = res

		for _, c := range matched {
			if res.IsEligible(c.ID) {
				continue
			}
			suppressed[c.ID] = struct{}{}
			d.Suppressed = append(d.Suppressed, Suppression{
				ID:        c.ID,
				Composite: composite.ID,
				Reason:    res.Suppressed[c.ID],
			})
		}
	}

	sort.SliceStable(d.Suppressed, func(i, j int) bool {
		if d.Suppressed[i].ID != d.Suppressed[j].ID {
			return d.Suppressed[i].ID < d.Suppressed[j].ID
		}
		return d.Suppressed[i].Composite < d.Suppressed[j].Composite
	})
	return suppressed, nil
}

func sortByPriority(cs []models.Constraint) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Priority != cs[j].Priority {
			return cs[i].Priority > cs[j].Priority
		}
		return cs[i].ID < cs[j].ID
	})
}

func capped(cs []models.Constraint, k int) []models.Constraint {
	if len(cs) > k {
		return cs[:k]
	}
	return cs
}
