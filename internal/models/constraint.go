// Package models defines the value types shared by the nudge engine:
// constraints, their triggers and compositions, per-interaction contexts,
// and the typed errors the engine reports.
package models

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/nudge/internal/constants"
)

// ConstraintID is the stable, case-sensitive key of a constraint.
type ConstraintID string

// CompositionType is the coordination rule of a composite constraint.
type CompositionType string

const (
	CompositionSequential   CompositionType = "sequential"   // one step at a time, advanced by explicit completion
	CompositionParallel     CompositionType = "parallel"     // every matching component at once
	CompositionHierarchical CompositionType = "hierarchical" // lowest open level first, later levels may be reached
	CompositionProgressive  CompositionType = "progressive"  // unlocked levels accumulate
	CompositionLayered      CompositionType = "layered"      // strictly the next open layer
)

// CompositionTypes lists every supported composition type.
var CompositionTypes = []CompositionType{
	CompositionSequential,
	CompositionParallel,
	CompositionHierarchical,
	CompositionProgressive,
	CompositionLayered,
}

// ParseCompositionType maps a case-insensitive name to a CompositionType.
func ParseCompositionType(s string) (CompositionType, bool) {
	want := CompositionType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range CompositionTypes {
		if t == want {
			return t, true
		}
	}
	return "", false
}

// LevelBased reports whether components of this type carry hierarchy levels.
func (t CompositionType) LevelBased() bool {
	switch t {
	case CompositionHierarchical, CompositionProgressive, CompositionLayered:
		return true
	default:
		return false
	}
}

// TriggerDefinition is the activation rule of a constraint. Keywords,
// context patterns and anti-patterns are lower-cased; file patterns keep
// their case. Use NewTrigger to get normalised values.
type TriggerDefinition struct {
	Keywords            []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	FilePatterns        []string `json:"file_patterns,omitempty" yaml:"file_patterns,omitempty"`
	ContextPatterns     []string `json:"context_patterns,omitempty" yaml:"context_patterns,omitempty"`
	AntiPatterns        []string `json:"anti_patterns,omitempty" yaml:"anti_patterns,omitempty"`
	ConfidenceThreshold float64  `json:"confidence_threshold" yaml:"confidence_threshold"`
}

// NewTrigger normalises the pattern sets and applies the default threshold
// when threshold is nil.
func NewTrigger(keywords, filePatterns, contextPatterns, antiPatterns []string, threshold *float64) TriggerDefinition {
	t := TriggerDefinition{
		Keywords:            normalizeSet(keywords, true),
		FilePatterns:        normalizeSet(filePatterns, false),
		ContextPatterns:     normalizeSet(contextPatterns, true),
		AntiPatterns:        normalizeSet(antiPatterns, true),
		ConfidenceThreshold: constants.DefaultConfidenceThreshold,
	}
	if threshold != nil {
		t.ConfidenceThreshold = *threshold
	}
	return t
}

// IsEmpty reports whether the trigger declares nothing that could match.
// Anti-patterns alone only exclude, they never activate.
func (t TriggerDefinition) IsEmpty() bool {
	return len(t.Keywords) == 0 && len(t.FilePatterns) == 0 && len(t.ContextPatterns) == 0
}

// Validate checks the threshold bounds.
func (t TriggerDefinition) Validate(id ConstraintID) error {
	if t.ConfidenceThreshold < 0 || t.ConfidenceThreshold > 1 {
		return &ValidationError{
			ConstraintID: id,
			Field:        "trigger.confidence_threshold",
			Issue:        "out-of-range",
			Detail:       fmt.Sprintf("%g not in [0,1]", t.ConfidenceThreshold),
		}
	}
	return nil
}

// ConstraintReference points a composite at one of its components.
// SequenceOrder is set for sequential composites, HierarchyLevel for
// level-based ones.
type ConstraintReference struct {
	ID             ConstraintID `json:"id" yaml:"id"`
	SequenceOrder  *int         `json:"sequence_order,omitempty" yaml:"sequence_order,omitempty"`
	HierarchyLevel *int         `json:"hierarchy_level,omitempty" yaml:"hierarchy_level,omitempty"`
}

// HierarchyLevel declares one level of a level-based composite.
type HierarchyLevel struct {
	Level       int    `json:"level" yaml:"level"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Composition describes how a composite coordinates its components.
type Composition struct {
	Type       CompositionType       `json:"type" yaml:"type"`
	Components []ConstraintReference `json:"components" yaml:"components"`

	// Levels is the hierarchy configuration. When empty, the distinct levels
	// carried by the components are taken as declared.
	Levels []HierarchyLevel `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// DeclaredLevels returns the declared hierarchy levels, ascending and unique.
func (c Composition) DeclaredLevels() []int {
	seen := make(map[int]struct{})
	var levels []int
	add := func(l int) {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			levels = append(levels, l)
		}
	}
	if len(c.Levels) > 0 {
		for _, l := range c.Levels {
			add(l.Level)
		}
	} else {
		for _, ref := range c.Components {
			if ref.HierarchyLevel != nil {
				add(*ref.HierarchyLevel)
			}
		}
	}
	sort.Ints(levels)
	return levels
}

// Reference returns the component reference for id.
func (c Composition) Reference(id ConstraintID) (ConstraintReference, bool) {
	for _, ref := range c.Components {
		if ref.ID == id {
			return ref, true
		}
	}
	return ConstraintReference{}, false
}

// Validate checks the component list against the composition type: every
// component is named, appears once, sequential components carry a unique
// order, and level-based components carry a declared level.
func (c Composition) Validate(owner ConstraintID) error {
	if _, ok := ParseCompositionType(string(c.Type)); !ok {
		return &ValidationError{ConstraintID: owner, Field: "composition_type", Issue: "unknown", Detail: string(c.Type)}
	}
	if len(c.Components) == 0 {
		return &ValidationError{ConstraintID: owner, Field: "components", Issue: "blank"}
	}

	declared := make(map[int]struct{})
	for _, l := range c.DeclaredLevels() {
		declared[l] = struct{}{}
	}

	seenIDs := make(map[ConstraintID]struct{}, len(c.Components))
	seenOrders := make(map[int]ConstraintID)
	for _, ref := range c.Components {
		if strings.TrimSpace(string(ref.ID)) == "" {
			return &ValidationError{ConstraintID: owner, Field: "components.id", Issue: "blank"}
		}
		if _, dup := seenIDs[ref.ID]; dup {
			return &ValidationError{ConstraintID: owner, Field: "components.id", Issue: "duplicate", Detail: string(ref.ID)}
		}
		seenIDs[ref.ID] = struct{}{}

		switch {
		case c.Type == CompositionSequential:
			if ref.SequenceOrder == nil {
				return &ValidationError{ConstraintID: owner, Field: "components.sequence_order", Issue: "missing", Detail: string(ref.ID)}
			}
			if other, dup := seenOrders[*ref.SequenceOrder]; dup {
				return &ValidationError{
					ConstraintID: owner,
					Field:        "components.sequence_order",
					Issue:        "duplicate",
					Detail:       fmt.Sprintf("%s and %s share order %d", other, ref.ID, *ref.SequenceOrder),
				}
			}
			seenOrders[*ref.SequenceOrder] = ref.ID
		case c.Type.LevelBased():
			if ref.HierarchyLevel == nil {
				return &ValidationError{ConstraintID: owner, Field: "components.hierarchy_level", Issue: "missing", Detail: string(ref.ID)}
			}
			if _, ok := declared[*ref.HierarchyLevel]; !ok {
				return &ValidationError{
					ConstraintID: owner,
					Field:        "components.hierarchy_level",
					Issue:        "undeclared-level",
					Detail:       fmt.Sprintf("%s at level %d", ref.ID, *ref.HierarchyLevel),
				}
			}
		}
	}
	return nil
}

// Constraint is a single reminder unit (atomic) or a coordinated group of
// other constraints (composite, Composition != nil). Constraints are value
// objects: once placed in a pack they are never modified.
type Constraint struct {
	ID        ConstraintID      `json:"id" yaml:"id"`
	Title     string            `json:"title" yaml:"title"`
	Priority  float64           `json:"priority" yaml:"priority"`
	Trigger   TriggerDefinition `json:"trigger" yaml:"trigger"`
	Reminders []string          `json:"reminders,omitempty" yaml:"reminders,omitempty"`

	Composition *Composition `json:"composition,omitempty" yaml:"composition,omitempty"`
}

// NewAtomic builds a validated atomic constraint.
func NewAtomic(id ConstraintID, title string, priority float64, trigger TriggerDefinition, reminders []string) (Constraint, error) {
	c := Constraint{
		ID:        id,
		Title:     title,
		Priority:  priority,
		Trigger:   trigger,
		Reminders: append([]string(nil), reminders...),
	}
	if err := c.Validate(); err != nil {
		return Constraint{}, err
	}
	return c, nil
}

// NewComposite builds a validated composite constraint. Reference
// resolution and cycle checks need the whole library and happen in
// library.Build.
func NewComposite(id ConstraintID, title string, priority float64, trigger TriggerDefinition, composition Composition) (Constraint, error) {
	comp := composition.clone()
	c := Constraint{
		ID:          id,
		Title:       title,
		Priority:    priority,
		Trigger:     trigger,
		Composition: &comp,
	}
	if err := c.Validate(); err != nil {
		return Constraint{}, err
	}
	return c, nil
}

// IsComposite reports whether c groups other constraints.
func (c Constraint) IsComposite() bool {
	return c.Composition != nil
}

// Validate checks the invariants a constraint holds on its own.
func (c Constraint) Validate() error {
	if strings.TrimSpace(string(c.ID)) == "" {
		return &ValidationError{Field: "id", Issue: "blank"}
	}
	if c.Priority < 0 || c.Priority > 1 {
		return &ValidationError{
			ConstraintID: c.ID,
			Field:        "priority",
			Issue:        "out-of-range",
			Detail:       fmt.Sprintf("%g not in [0,1]", c.Priority),
		}
	}
	if err := c.Trigger.Validate(c.ID); err != nil {
		return err
	}
	if c.Composition != nil {
		for _, ref := range c.Composition.Components {
			if ref.ID == c.ID {
				return &ValidationError{ConstraintID: c.ID, Field: "components", Issue: "cycle", Detail: "references itself"}
			}
		}
		return c.Composition.Validate(c.ID)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c Constraint) Clone() Constraint {
	out := c
	out.Trigger = TriggerDefinition{
		Keywords:            append([]string(nil), c.Trigger.Keywords...),
		FilePatterns:        append([]string(nil), c.Trigger.FilePatterns...),
		ContextPatterns:     append([]string(nil), c.Trigger.ContextPatterns...),
		AntiPatterns:        append([]string(nil), c.Trigger.AntiPatterns...),
		ConfidenceThreshold: c.Trigger.ConfidenceThreshold,
	}
	out.Reminders = append([]string(nil), c.Reminders...)
	if c.Composition != nil {
		comp := c.Composition.clone()
		out.Composition = &comp
	}
	return out
}

func (c Composition) clone() Composition {
	out := Composition{Type: c.Type}
	out.Components = make([]ConstraintReference, len(c.Components))
	for i, ref := range c.Components {
		cp := ConstraintReference{ID: ref.ID}
		if ref.SequenceOrder != nil {
			v := *ref.SequenceOrder
			cp.SequenceOrder = &v
		}
		if ref.HierarchyLevel != nil {
			v := *ref.HierarchyLevel
			cp.HierarchyLevel = &v
		}
		out.Components[i] = cp
	}
	out.Levels = append([]HierarchyLevel(nil), c.Levels...)
	return out
}

// Reminder is the outward view of an activated constraint.
type Reminder struct {
	ID        ConstraintID `json:"id"`
	Title     string       `json:"title"`
	Priority  float64      `json:"priority"`
	Reminders []string     `json:"reminders"`
}

// ToReminder projects c onto its outward view.
func (c Constraint) ToReminder() Reminder {
	reminders := append([]string(nil), c.Reminders...)
	if reminders == nil {
		reminders = []string{}
	}
	return Reminder{ID: c.ID, Title: c.Title, Priority: c.Priority, Reminders: reminders}
}

// ToReminders projects a constraint list, keeping its order.
func ToReminders(cs []Constraint) []Reminder {
	out := make([]Reminder, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ToReminder())
	}
	return out
}

// normalizeSet trims, optionally lower-cases, drops blanks and duplicates,
// and sorts so equal sets compare equal.
func normalizeSet(in []string, fold bool) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if fold {
			s = strings.ToLower(s)
		}
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
