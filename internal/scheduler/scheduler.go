// Package scheduler decides whether an interaction is an injection point.
//
// The decision is a pure function of the configured cadence and the
// interaction number: no clock, no randomness, no call history. Two
// schedulers with the same cadence agree on every input, which keeps
// injection timing auditable.
package scheduler

import (
	"fmt"

	"github.com/nvandessel/nudge/internal/models"
)

// Scheduler gates injections by cadence.
type Scheduler struct {
	cadence int
}

// New creates a scheduler. cadence must be positive.
func New(cadence int) (*Scheduler, error) {
	if cadence <= 0 {
		return nil, &models.ValidationError{
			Field:  "cadence",
			Issue:  "out-of-range",
			Detail: fmt.Sprintf("%d must be positive", cadence),
		}
	}
	return &Scheduler{cadence: cadence}, nil
}

// Cadence returns the configured interval.
func (s *Scheduler) Cadence() int {
	return s.cadence
}

// ShouldInject reports whether interaction n injects. The first interaction
// always injects to establish the session; after that every cadence-th
// interaction does. Interaction numbers start at 1; smaller values never
// inject.
func (s *Scheduler) ShouldInject(n int) bool {
	if n < 1 {
		return false
	}
	return n == 1 || n%s.cadence == 0
}

// InjectionPoints lists the injecting interactions in [from, to].
func (s *Scheduler) InjectionPoints(from, to int) []int {
	points := make([]int, 0)
	if from < 1 {
		from = 1
	}
	for n := from; n <= to; n++ {
		if s.ShouldInject(n) {
			points = append(points, n)
		}
	}
	return points
}

// NextInjection returns the first injecting interaction after n.
func (s *Scheduler) NextInjection(n int) int {
	if n < 1 {
		return 1
	}
	return (n/s.cadence + 1) * s.cadence
}
