// Package library holds the validated, immutable constraint pack.
//
// A Pack is built once per configuration load and never mutated afterwards,
// so any number of goroutines may read it without coordination. Changing
// the configuration means building a new Pack and swapping it in through a
// Holder.
package library

import (
	"sort"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
)

// Matcher decides whether a constraint applies to a context or a bare
// category. *trigger.Engine satisfies it.
type Matcher interface {
	IsActivated(c models.Constraint, ctx *models.TriggerContext) bool
	MatchesCategory(c models.Constraint, category string) bool
}

// Pack is a validated constraint library sorted by priority descending.
type Pack struct {
	version     string
	constraints []models.Constraint
	index       map[models.ConstraintID]int
	// referencedBy maps a component id to the composites referencing it.
	referencedBy map[models.ConstraintID][]models.ConstraintID
}

// Build validates constraints and returns an immutable pack. The input is
// deep-copied; later changes to it do not affect the pack.
func Build(version string, constraints []models.Constraint) (*Pack, error) {
	if strings.TrimSpace(version) == "" {
		return nil, &models.ValidationError{Field: "version", Issue: "blank"}
	}

	cs := make([]models.Constraint, len(constraints))
	for i, c := range constraints {
		cs[i] = c.Clone()
	}

	if err := validate(cs); err != nil {
		return nil, err
	}

	// Stable sort keeps declaration order among equal priorities.
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Priority > cs[j].Priority
	})

	p := &Pack{
		version:      strings.TrimSpace(version),
		constraints:  cs,
		index:        make(map[models.ConstraintID]int, len(cs)),
		referencedBy: make(map[models.ConstraintID][]models.ConstraintID),
	}
	for i, c := range cs {
		p.index[c.ID] = i
	}
	for _, c := range cs {
		if !c.IsComposite() {
			continue
		}
		for _, ref := range c.Composition.Components {
			p.referencedBy[ref.ID] = append(p.referencedBy[ref.ID], c.ID)
		}
	}
	return p, nil
}

// Version returns the pack version string.
func (p *Pack) Version() string {
	return p.version
}

// Len returns the number of constraints.
func (p *Pack) Len() int {
	return len(p.constraints)
}

// Constraints returns all constraints in priority order. The returned slice
// is a copy; the constraints themselves must be treated as read-only.
func (p *Pack) Constraints() []models.Constraint {
	return append([]models.Constraint(nil), p.constraints...)
}

// Get returns the constraint with the given id.
func (p *Pack) Get(id models.ConstraintID) (models.Constraint, bool) {
	i, ok := p.index[id]
	if !ok {
		return models.Constraint{}, false
	}
	return p.constraints[i], true
}

// Composites returns the composite constraints in priority order.
func (p *Pack) Composites() []models.Constraint {
	var out []models.Constraint
	for _, c := range p.constraints {
		if c.IsComposite() {
			out = append(out, c)
		}
	}
	return out
}

// ReferencedBy returns the ids of composites referencing id, sorted.
func (p *Pack) ReferencedBy(id models.ConstraintID) []models.ConstraintID {
	refs := append([]models.ConstraintID(nil), p.referencedBy[id]...)
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// GetTopByPriority returns the first count constraints.
func (p *Pack) GetTopByPriority(count int) ([]models.Constraint, error) {
	if count <= 0 {
		return nil, &models.ArgumentError{Name: "count", Reason: "must be positive"}
	}
	return capped(p.constraints, count), nil
}

// GetByContext returns the constraints m activates for ctx, in priority order.
func (p *Pack) GetByContext(m Matcher, ctx *models.TriggerContext) ([]models.Constraint, error) {
	if m == nil {
		return nil, &models.ArgumentError{Name: "matcher", Reason: "is nil"}
	}
	if ctx == nil {
		return nil, &models.ArgumentError{Name: "context", Reason: "is nil"}
	}
	out := make([]models.Constraint, 0)
	for _, c := range p.constraints {
		if m.IsActivated(c, ctx) {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetByCategory returns the constraints whose trigger matches category, in
// priority order.
func (p *Pack) GetByCategory(m Matcher, category string) ([]models.Constraint, error) {
	if m == nil {
		return nil, &models.ArgumentError{Name: "matcher", Reason: "is nil"}
	}
	if strings.TrimSpace(category) == "" {
		return nil, &models.ArgumentError{Name: "category", Reason: "is blank"}
	}
	out := make([]models.Constraint, 0)
	for _, c := range p.constraints {
		if m.MatchesCategory(c, category) {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetTopByContext is GetByContext capped at count.
func (p *Pack) GetTopByContext(m Matcher, ctx *models.TriggerContext, count int) ([]models.Constraint, error) {
	if count <= 0 {
		return nil, &models.ArgumentError{Name: "count", Reason: "must be positive"}
	}
	cs, err := p.GetByContext(m, ctx)
	if err != nil {
		return nil, err
	}
	return capped(cs, count), nil
}

// GetTopByCategory is GetByCategory capped at count.
func (p *Pack) GetTopByCategory(m Matcher, category string, count int) ([]models.Constraint, error) {
	if count <= 0 {
		return nil, &models.ArgumentError{Name: "count", Reason: "must be positive"}
	}
	cs, err := p.GetByCategory(m, category)
	if err != nil {
		return nil, err
	}
	return capped(cs, count), nil
}

// ValidateRemoval fails with a ConstraintInUseError when a composite still
// references id. The pack is never changed by this check.
func (p *Pack) ValidateRemoval(id models.ConstraintID) error {
	if _, ok := p.index[id]; !ok {
		return &models.ArgumentError{Name: "id", Reason: "unknown constraint " + string(id)}
	}
	if refs := p.ReferencedBy(id); len(refs) > 0 {
		return &models.ConstraintInUseError{ConstraintID: id, ReferencedBy: refs}
	}
	return nil
}

// Without returns a new pack lacking id, after ValidateRemoval passes.
func (p *Pack) Without(id models.ConstraintID) (*Pack, error) {
	if err := p.ValidateRemoval(id); err != nil {
		return nil, err
	}
	rest := make([]models.Constraint, 0, len(p.constraints)-1)
	for _, c := range p.constraints {
		if c.ID != id {
			rest = append(rest, c)
		}
	}
	return Build(p.version, rest)
}

func capped(cs []models.Constraint, count int) []models.Constraint {
	if count > len(cs) {
		count = len(cs)
	}
	return append(make([]models.Constraint, 0, count), cs[:count]...)
}
