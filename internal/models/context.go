package models

import (
	"fmt"
	"strings"
)

// TriggerContext is the signal of one agent interaction, produced by the
// context analyzer. The engine reads it and never keeps a reference.
type TriggerContext struct {
	// Keywords extracted from the current tool call.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// FilePath is the file being touched, if any.
	FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`

	// ContextPatterns are declared activity categories such as "testing".
	ContextPatterns []string `json:"context_patterns,omitempty" yaml:"context_patterns,omitempty"`

	// Categories are user-defined category/value pairs.
	Categories []UserDefinedContext `json:"categories,omitempty" yaml:"categories,omitempty"`

	// Interaction is the 1-based interaction number within the session.
	Interaction int `json:"interaction" yaml:"interaction"`
}

// UserDefinedContext is a category/value pair with its own priority.
// Equality is case-insensitive on category and value.
type UserDefinedContext struct {
	Category string            `json:"category" yaml:"category"`
	Value    string            `json:"value" yaml:"value"`
	Priority float64           `json:"priority" yaml:"priority"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewUserDefinedContext trims category and value and checks the invariants.
func NewUserDefinedContext(category, value string, priority float64, metadata map[string]string) (UserDefinedContext, error) {
	category = strings.TrimSpace(category)
	value = strings.TrimSpace(value)
	if category == "" {
		return UserDefinedContext{}, &ValidationError{Field: "category", Issue: "blank"}
	}
	if value == "" {
		return UserDefinedContext{}, &ValidationError{Field: "value", Issue: "blank"}
	}
	if priority < 0 || priority > 1 {
		return UserDefinedContext{}, &ValidationError{
			Field:  "priority",
			Issue:  "out-of-range",
			Detail: fmt.Sprintf("%g not in [0,1]", priority),
		}
	}
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return UserDefinedContext{Category: category, Value: value, Priority: priority, Metadata: md}, nil
}

// Equal compares category and value case-insensitively.
func (u UserDefinedContext) Equal(other UserDefinedContext) bool {
	return u.Key() == other.Key()
}

// Key is the canonical "category:value" form used for equality and matching.
func (u UserDefinedContext) Key() string {
	return strings.ToLower(strings.TrimSpace(u.Category)) + ":" + strings.ToLower(strings.TrimSpace(u.Value))
}

// HasCategory reports whether ctx carries a category/value pair in category.
func (c *TriggerContext) HasCategory(category string) bool {
	want := strings.ToLower(strings.TrimSpace(category))
	for _, u := range c.Categories {
		if strings.ToLower(strings.TrimSpace(u.Category)) == want {
			return true
		}
	}
	return false
}

// CompositeProgress is the caller-owned completion state of one composite.
// A nil map means nothing is completed or unlocked.
type CompositeProgress struct {
	CompletedComponents map[ConstraintID]bool `json:"completed_components,omitempty"`
	CompletedLevels     map[int]bool          `json:"completed_levels,omitempty"`
	UnlockedLevels      map[int]bool          `json:"unlocked_levels,omitempty"`
}

// ComponentCompleted reports whether the component was signalled complete.
func (p CompositeProgress) ComponentCompleted(id ConstraintID) bool {
	return p.CompletedComponents[id]
}

// LevelCompleted reports whether the level was signalled complete.
func (p CompositeProgress) LevelCompleted(level int) bool {
	return p.CompletedLevels[level]
}

// LevelUnlocked reports whether the caller explicitly unlocked the level.
func (p CompositeProgress) LevelUnlocked(level int) bool {
	return p.UnlockedLevels[level]
}

// CompositionProgress maps composite ids to their progress.
type CompositionProgress map[ConstraintID]CompositeProgress

// For returns the progress of a composite, empty if none was recorded.
func (p CompositionProgress) For(id ConstraintID) CompositeProgress {
	if p == nil {
		return CompositeProgress{}
	}
	return p[id]
}
