package composition

import (
	"sort"

	"github.com/nvandessel/nudge/internal/models"
)

// GetNextHierarchyLevel returns the lowest declared level not in completed,
// or false once every declared level is completed.
func GetNextHierarchyLevel(declared []int, completed map[int]bool) (int, bool) {
	levels := append([]int(nil), declared...)
	sort.Ints(levels)
	for _, l := range levels {
		if !completed[l] {
			return l, true
		}
	}
	return 0, false
}

// Hierarchical makes the matched components of the lowest open level
// eligible. When nothing matched on that level, the lowest later open level
// with matches is used instead.
type Hierarchical struct{}

func (Hierarchical) Type() models.CompositionType { return models.CompositionHierarchical }

func (Hierarchical) Resolve(comp models.Composition, matched []models.Constraint, progress models.CompositeProgress) (Resolution, error) {
	if err := checkComposition(comp, models.CompositionHierarchical); err != nil {
		return Resolution{}, err
	}
	res := Resolution{Type: models.CompositionHierarchical, Eligible: []models.ConstraintID{}}
	groups := groupByLevel(comp, matched)

	next, ok := GetNextHierarchyLevel(comp.DeclaredLevels(), progress.CompletedLevels)
	chosen, found := 0, false
	if ok {
		for _, l := range comp.DeclaredLevels() {
			if l < next || progress.LevelCompleted(l) {
				continue
			}
			if len(groups[l]) > 0 {
				chosen, found = l, true
				break
			}
		}
	}

	for _, l := range sortedLevels(groups) {
		for _, c := range groups[l] {
			switch {
			case !ok:
				res.suppress(c.ID, SuppressAllCompleted)
			case found && l == chosen:
				res.Eligible = append(res.Eligible, c.ID)
			case progress.LevelCompleted(l):
				res.suppress(c.ID, SuppressLevelCompleted)
			default:
				res.suppress(c.ID, SuppressLevelLocked)
			}
		}
	}
	if found {
		res.Levels = []int{chosen}
	}
	return res, nil
}

// Layered is Hierarchical without skipping: only the next open layer is
// eligible, even when a later layer's trigger matches.
type Layered struct{}

func (Layered) Type() models.CompositionType { return models.CompositionLayered }

func (Layered) Resolve(comp models.Composition, matched []models.Constraint, progress models.CompositeProgress) (Resolution, error) {
	if err := checkComposition(comp, models.CompositionLayered); err != nil {
		return Resolution{}, err
	}
	res := Resolution{Type: models.CompositionLayered, Eligible: []models.ConstraintID{}}
	groups := groupByLevel(comp, matched)

	next, ok := GetNextHierarchyLevel(comp.DeclaredLevels(), progress.CompletedLevels)
	for _, l := range sortedLevels(groups) {
		for _, c := range groups[l] {
			switch {
			case !ok:
				res.suppress(c.ID, SuppressAllCompleted)
			case l == next:
				res.Eligible = append(res.Eligible, c.ID)
			case progress.LevelCompleted(l):
				res.suppress(c.ID, SuppressLevelCompleted)
			default:
				res.suppress(c.ID, SuppressLevelLocked)
			}
		}
	}
	if ok {
		res.Levels = []int{next}
	}
	return res, nil
}

// Progressive makes every unlocked, not yet completed level eligible at
// once. The first declared level is always unlocked; a later level unlocks
// when its predecessor is completed or when the caller unlocks it
// explicitly. The unlocking criteria belong to the caller.
type Progressive struct{}

func (Progressive) Type() models.CompositionType { return models.CompositionProgressive }

func (Progressive) Resolve(comp models.Composition, matched []models.Constraint, progress models.CompositeProgress) (Resolution, error) {
	if err := checkComposition(comp, models.CompositionProgressive); err != nil {
		return Resolution{}, err
	}
	res := Resolution{Type: models.CompositionProgressive, Eligible: []models.ConstraintID{}}
	groups := groupByLevel(comp, matched)

	open := make(map[int]bool)
	for _, l := range UnlockedLevels(comp.DeclaredLevels(), progress) {
		if !progress.LevelCompleted(l) {
			open[l] = true
			res.Levels = append(res.Levels, l)
		}
	}

	_, anyOpen := GetNextHierarchyLevel(comp.DeclaredLevels(), progress.CompletedLevels)
	for _, l := range sortedLevels(groups) {
		for _, c := range groups[l] {
			switch {
			case !anyOpen:
				res.suppress(c.ID, SuppressAllCompleted)
			case open[l]:
				res.Eligible = append(res.Eligible, c.ID)
			case progress.LevelCompleted(l):
				res.suppress(c.ID, SuppressLevelCompleted)
			default:
				res.suppress(c.ID, SuppressLevelLocked)
			}
		}
	}
	return res, nil
}

// UnlockedLevels returns the declared levels that are unlocked, ascending.
func UnlockedLevels(declared []int, progress models.CompositeProgress) []int {
	levels := append([]int(nil), declared...)
	sort.Ints(levels)
	var out []int
	for i, l := range levels {
		if i == 0 || progress.LevelUnlocked(l) || progress.LevelCompleted(levels[i-1]) {
			out = append(out, l)
		}
	}
	return out
}

// groupByLevel buckets matched components by their hierarchy level, each
// bucket sorted by priority desc.
func groupByLevel(comp models.Composition, matched []models.Constraint) map[int][]models.Constraint {
	groups := make(map[int][]models.Constraint)
	for _, c := range byPriority(matched) {
		ref, ok := comp.Reference(c.ID)
		if !ok || ref.HierarchyLevel == nil {
			continue
		}
		groups[*ref.HierarchyLevel] = append(groups[*ref.HierarchyLevel], c)
	}
	return groups
}

func sortedLevels(groups map[int][]models.Constraint) []int {
	levels := make([]int, 0, len(groups))
	for l := range groups {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}
