package composition

import (
	"reflect"
	"testing"

	"github.com/nvandessel/nudge/internal/models"
)

var (
	levelA = atom("a", 0.5)
	levelB = atom("b", 0.9)
	levelC = atom("c", 0.8)
	levelD = atom("d", 0.4)
)

func threeLevels(t models.CompositionType) models.Composition {
	return leveled(t, map[string]int{"a": 0, "b": 0, "c": 1, "d": 2})
}

type levelCase struct {
	name           string
	matched        []models.Constraint
	progress       models.CompositeProgress
	wantEligible   []models.ConstraintID
	wantSuppressed map[models.ConstraintID]SuppressReason
	wantLevels     []int
}

func runLevelCases(t *testing.T, s Strategy, tests []levelCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Resolve(threeLevels(s.Type()), tt.matched, tt.progress)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if res.Type != s.Type() {
				t.Errorf("Type = %s", res.Type)
			}
			if !reflect.DeepEqual(res.Eligible, tt.wantEligible) {
				t.Errorf("Eligible = %v, want %v", res.Eligible, tt.wantEligible)
			}
			if len(res.Suppressed) != len(tt.wantSuppressed) {
				t.Errorf("Suppressed = %v, want %v", res.Suppressed, tt.wantSuppressed)
			}
			for id, want := range tt.wantSuppressed {
				if got := res.Suppressed[id]; got != want {
					t.Errorf("Suppressed[%s] = %q, want %q", id, got, want)
				}
			}
			if len(res.Levels) != len(tt.wantLevels) || (len(tt.wantLevels) > 0 && !reflect.DeepEqual(res.Levels, tt.wantLevels)) {
				t.Errorf("Levels = %v, want %v", res.Levels, tt.wantLevels)
			}
		})
	}
}

func TestHierarchical(t *testing.T) {
	runLevelCases(t, Hierarchical{}, []levelCase{
		{
			name:           "lowest level first",
			matched:        []models.Constraint{levelA, levelB, levelC},
			wantEligible:   ids("b", "a"),
			wantSuppressed: map[models.ConstraintID]SuppressReason{"c": SuppressLevelLocked},
			wantLevels:     []int{0},
		},
		{
			name:         "skips to a later level with matches",
			matched:      []models.Constraint{levelC, levelD},
			wantEligible: ids("c"),
			wantSuppressed: map[models.ConstraintID]SuppressReason{
				"d": SuppressLevelLocked,
			},
			wantLevels: []int{1},
		},
		{
			name:         "completed level is held back",
			matched:      []models.Constraint{levelA, levelC},
			progress:     levelsDone(0),
			wantEligible: ids("c"),
			wantSuppressed: map[models.ConstraintID]SuppressReason{
				"a": SuppressLevelCompleted,
			},
			wantLevels: []int{1},
		},
		{
			name:     "every level complete",
			matched:  []models.Constraint{levelA, levelD},
			progress: levelsDone(0, 1, 2),
			wantSuppressed: map[models.ConstraintID]SuppressReason{
				"a": SuppressAllCompleted,
				"d": SuppressAllCompleted,
			},
			wantEligible: ids(),
		},
		{
			name:         "nothing matched",
			wantEligible: ids(),
		},
	})
}

func TestLayered(t *testing.T) {
	runLevelCases(t, Layered{}, []levelCase{
		{
			name:           "does not skip an open layer",
			matched:        []models.Constraint{levelC},
			wantEligible:   ids(),
			wantSuppressed: map[models.ConstraintID]SuppressReason{"c": SuppressLevelLocked},
			wantLevels:     []int{0},
		},
		{
			name:         "next layer after completion",
			matched:      []models.Constraint{levelA, levelC, levelD},
			progress:     levelsDone(0),
			wantEligible: ids("c"),
			wantSuppressed: map[models.ConstraintID]SuppressReason{
				"a": SuppressLevelCompleted,
				"d": SuppressLevelLocked,
			},
			wantLevels: []int{1},
		},
		{
			name:           "every layer complete",
			matched:        []models.Constraint{levelB},
			progress:       levelsDone(0, 1, 2),
			wantEligible:   ids(),
			wantSuppressed: map[models.ConstraintID]SuppressReason{"b": SuppressAllCompleted},
		},
	})
}

func TestProgressive(t *testing.T) {
	explicit := models.CompositeProgress{UnlockedLevels: map[int]bool{2: true}}

	runLevelCases(t, Progressive{}, []levelCase{
		{
			name:         "first level is unlocked",
			matched:      []models.Constraint{levelA, levelC, levelD},
			wantEligible: ids("a"),
			wantSuppressed: map[models.ConstraintID]SuppressReason{
				"c": SuppressLevelLocked,
				"d": SuppressLevelLocked,
			},
			wantLevels: []int{0},
		},
		{
			name:         "completing a level unlocks the next",
			matched:      []models.Constraint{levelA, levelC, levelD},
			progress:     levelsDone(0),
			wantEligible: ids("c"),
			wantSuppressed: map[models.ConstraintID]SuppressReason{
				"a": SuppressLevelCompleted,
				"d": SuppressLevelLocked,
			},
			wantLevels: []int{1},
		},
		{
			name:         "explicit unlock opens levels together",
			matched:      []models.Constraint{levelA, levelC, levelD},
			progress:     explicit,
			wantEligible: ids("a", "d"),
			wantSuppressed: map[models.ConstraintID]SuppressReason{
				"c": SuppressLevelLocked,
			},
			wantLevels: []int{0, 2},
		},
		{
			name:         "every level complete",
			matched:      []models.Constraint{levelA},
			progress:     levelsDone(0, 1, 2),
			wantEligible: ids(),
			wantSuppressed: map[models.ConstraintID]SuppressReason{
				"a": SuppressAllCompleted,
			},
		},
	})
}

func TestLevelStrategies_UseDeclaredLevels(t *testing.T) {
	comp := leveled(models.CompositionHierarchical, map[string]int{"a": 0, "c": 5})
	comp.Levels = []models.HierarchyLevel{{Level: 0}, {Level: 3}, {Level: 5}}

	res, err := Hierarchical{}.Resolve(comp, []models.Constraint{levelC}, levelsDone(0))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(res.Eligible, ids("c")) || !reflect.DeepEqual(res.Levels, []int{5}) {
		t.Errorf("Resolve() = %+v, want c at level 5", res)
	}
}

func TestGetNextHierarchyLevel(t *testing.T) {
	tests := []struct {
		name      string
		declared  []int
		completed map[int]bool
		want      int
		wantOK    bool
	}{
		{"nothing completed", []int{2, 0, 1}, nil, 0, true},
		{"first completed", []int{0, 1, 2}, map[int]bool{0: true}, 1, true},
		{"gap", []int{0, 1, 2}, map[int]bool{0: true, 2: true}, 1, true},
		{"all completed", []int{0, 1}, map[int]bool{0: true, 1: true}, 0, false},
		{"no levels", nil, nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := GetNextHierarchyLevel(tt.declared, tt.completed)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("GetNextHierarchyLevel() = %d, %v, want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestUnlockedLevels(t *testing.T) {
	tests := []struct {
		name     string
		progress models.CompositeProgress
		want     []int
	}{
		{"fresh", models.CompositeProgress{}, []int{0}},
		{"predecessor completed", levelsDone(0), []int{0, 1}},
		{"chain", levelsDone(0, 1), []int{0, 1, 2}},
		{"explicit", models.CompositeProgress{UnlockedLevels: map[int]bool{1: true}}, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnlockedLevels([]int{2, 1, 0}, tt.progress)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("UnlockedLevels() = %v, want %v", got, tt.want)
			}
		})
	}
}
