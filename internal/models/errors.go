package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is. Each typed error below unwraps to one of them.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConstraintInUse = errors.New("constraint in use")
	ErrArgument        = errors.New("invalid argument")
)

// ValidationError reports malformed engine input detected at construction
// time: a bad pack, an undeclared hierarchy level, a non-positive cadence.
// Nothing partially built is ever returned alongside it.
type ValidationError struct {
	ConstraintID ConstraintID `json:"constraint_id,omitempty"`
	Field        string       `json:"field"`
	Issue        string       `json:"issue"` // "blank", "duplicate", "dangling", "cycle", "out-of-range", "undeclared-level", ...
	Detail       string       `json:"detail,omitempty"`
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation: ")
	if e.ConstraintID != "" {
		fmt.Fprintf(&b, "%s: ", e.ConstraintID)
	}
	fmt.Fprintf(&b, "%s %s", e.Field, e.Issue)
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConstraintInUseError rejects removing a constraint that composites still
// reference.
type ConstraintInUseError struct {
	ConstraintID ConstraintID   `json:"constraint_id"`
	ReferencedBy []ConstraintID `json:"referenced_by"`
}

func (e *ConstraintInUseError) Error() string {
	refs := make([]string, len(e.ReferencedBy))
	for i, id := range e.ReferencedBy {
		refs[i] = string(id)
	}
	return fmt.Sprintf("constraint %s is referenced by %s", e.ConstraintID, strings.Join(refs, ", "))
}

func (e *ConstraintInUseError) Unwrap() error { return ErrConstraintInUse }

// ArgumentError is a caller bug: a nil or out-of-range argument to a public
// operation. It is raised before any computation starts.
type ArgumentError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %s: %s", e.Name, e.Reason)
}

func (e *ArgumentError) Unwrap() error { return ErrArgument }
