package composition

import (
	"sort"

	"github.com/nvandessel/nudge/internal/models"
)

// Sequential makes only the lowest-order step that has not been signalled
// complete eligible. Matching a later step's trigger does not advance the
// sequence.
type Sequential struct{}

func (Sequential) Type() models.CompositionType { return models.CompositionSequential }

func (Sequential) Resolve(comp models.Composition, matched []models.Constraint, progress models.CompositeProgress) (Resolution, error) {
	if err := checkComposition(comp, models.CompositionSequential); err != nil {
		return Resolution{}, err
	}

	res := Resolution{Type: models.CompositionSequential, Eligible: []models.ConstraintID{}}
	res.NextStep = NextStep(comp, progress)

	for _, c := range byPriority(matched) {
		switch {
		case res.NextStep == "":
			res.suppress(c.ID, SuppressAllCompleted)
		case c.ID == res.NextStep:
			res.Eligible = append(res.Eligible, c.ID)
		case progress.ComponentCompleted(c.ID):
			res.suppress(c.ID, SuppressStepCompleted)
		default:
			res.suppress(c.ID, SuppressWaiting)
		}
	}
	return res, nil
}

// NextStep returns the lowest-order component not yet completed, or "" when
// every step is complete. comp must be a validated sequential composition.
func NextStep(comp models.Composition, progress models.CompositeProgress) models.ConstraintID {
	steps := make([]models.ConstraintReference, 0, len(comp.Components))
	for _, ref := range comp.Components {
		if ref.SequenceOrder != nil {
			steps = append(steps, ref)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return *steps[i].SequenceOrder < *steps[j].SequenceOrder
	})
	for _, ref := range steps {
		if !progress.ComponentCompleted(ref.ID) {
			return ref.ID
		}
	}
	return ""
}
