package session

import (
	"sync"
	"testing"
	"time"

	"github.com/nvandessel/nudge/internal/models"
)

func TestState_NewSession(t *testing.T) {
	s := NewState("s1")

	if got := s.ID(); got != "s1" {
		t.Errorf("ID() = %q, want s1", got)
	}
	if got := s.Interaction(); got != 0 {
		t.Errorf("Interaction() = %d, want 0", got)
	}
	if rec := s.GetInjection("nonexistent"); rec != nil {
		t.Errorf("GetInjection(nonexistent) = %v, want nil", rec)
	}
	if got := s.Progress(); len(got) != 0 {
		t.Errorf("Progress() = %v, want empty", got)
	}
}

func TestState_NextInteraction(t *testing.T) {
	s := NewState("s1")

	for want := 1; want <= 4; want++ {
		if got := s.NextInteraction(); got != want {
			t.Errorf("NextInteraction() = %d, want %d", got, want)
		}
	}
	if got := s.Interaction(); got != 4 {
		t.Errorf("Interaction() = %d, want 4", got)
	}
}

func TestState_RecordInjection(t *testing.T) {
	s := NewState("s1")
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.nowFunc = func() time.Time { return fixed }

	s.NextInteraction()
	s.RecordInjection(1, "tdd.test-first", "review.small-diffs")

	rec := s.GetInjection("tdd.test-first")
	if rec == nil {
		t.Fatal("GetInjection(tdd.test-first) = nil, want non-nil")
	}
	if rec.Count != 1 {
		t.Errorf("Count = %d, want 1", rec.Count)
	}
	if rec.LastInteraction != 1 {
		t.Errorf("LastInteraction = %d, want 1", rec.LastInteraction)
	}
	if !rec.InjectedAt.Equal(fixed) {
		t.Errorf("InjectedAt = %v, want %v", rec.InjectedAt, fixed)
	}

	s.NextInteraction()
	s.NextInteraction()
	s.RecordInjection(3, "tdd.test-first")

	rec = s.GetInjection("tdd.test-first")
	if rec.Count != 2 {
		t.Errorf("Count = %d, want 2", rec.Count)
	}
	if rec.LastInteraction != 3 {
		t.Errorf("LastInteraction = %d, want 3", rec.LastInteraction)
	}

	// The returned record is a copy.
	rec.Count = 99
	if got := s.GetInjection("tdd.test-first").Count; got != 2 {
		t.Errorf("Count after mutating copy = %d, want 2", got)
	}
}

func TestState_Progress(t *testing.T) {
	s := NewState("s1")

	s.CompleteComponent("tdd.cycle", "tdd.red")
	s.CompleteLevel("review.layers", 0)
	s.UnlockLevel("learn.path", 2)

	p := s.Progress()
	if !p.For("tdd.cycle").ComponentCompleted("tdd.red") {
		t.Error("tdd.red should be completed")
	}
	if p.For("tdd.cycle").ComponentCompleted("tdd.green") {
		t.Error("tdd.green should not be completed")
	}
	if !p.For("review.layers").LevelCompleted(0) {
		t.Error("level 0 of review.layers should be completed")
	}
	if !p.For("learn.path").LevelUnlocked(2) {
		t.Error("level 2 of learn.path should be unlocked")
	}
	if p.For("unknown").LevelCompleted(0) {
		t.Error("unknown composite should report no progress")
	}
}

func TestState_ProgressIsSnapshot(t *testing.T) {
	s := NewState("s1")
	s.CompleteComponent("tdd.cycle", "tdd.red")

	snap := s.Progress()
	snap["tdd.cycle"].CompletedComponents["tdd.green"] = true

	s.CompleteComponent("tdd.cycle", "tdd.refactor")
	if snap.For("tdd.cycle").ComponentCompleted("tdd.refactor") {
		t.Error("snapshot changed after a later completion")
	}
	if s.Progress().For("tdd.cycle").ComponentCompleted("tdd.green") {
		t.Error("mutating the snapshot changed the state")
	}
}

func TestState_ThreadSafety(t *testing.T) {
	s := NewState("s1")

	var wg sync.WaitGroup
	const goroutines = 50
	const opsPerGoroutine = 100

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			cid := models.ConstraintID("c" + string(rune('A'+id%26)))
			for j := 0; j < opsPerGoroutine; j++ {
				n := s.NextInteraction()
				s.RecordInjection(n, cid)
				s.CompleteComponent("seq", cid)
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			cid := models.ConstraintID("c" + string(rune('A'+id%26)))
			for j := 0; j < opsPerGoroutine; j++ {
				s.GetInjection(cid)
				s.Progress()
				s.Interaction()
			}
		}(i)
	}

	wg.Wait()

	if got := s.Interaction(); got != goroutines*opsPerGoroutine {
		t.Errorf("Interaction() = %d, want %d", got, goroutines*opsPerGoroutine)
	}
}

func TestState_RecordInjection_UsesSelectedInteraction(t *testing.T) {
	s := NewState("s1")

	selected := s.NextInteraction()
	// Another call on the same session advances the counter before the
	// first one records what it injected.
	s.NextInteraction()
	s.RecordInjection(selected, "tdd.test-first")

	if got := s.GetInjection("tdd.test-first").LastInteraction; got != selected {
		t.Errorf("LastInteraction = %d, want the selected interaction %d", got, selected)
	}

	s.RecordInjection(5, "tdd.test-first")
	s.RecordInjection(4, "tdd.test-first")
	rec := s.GetInjection("tdd.test-first")
	if rec.Count != 3 || rec.LastInteraction != 5 {
		t.Errorf("record = %+v, want count 3 and LastInteraction 5", rec)
	}
}

func TestState_Reset(t *testing.T) {
	s := NewState("s1")

	s.RecordInjection(s.NextInteraction(), "c1")
	s.CompleteLevel("layers", 0)

	s.Reset()

	if got := s.Interaction(); got != 0 {
		t.Errorf("Interaction() after reset = %d, want 0", got)
	}
	if rec := s.GetInjection("c1"); rec != nil {
		t.Errorf("GetInjection(c1) after reset = %v, want nil", rec)
	}
	if got := s.Progress(); len(got) != 0 {
		t.Errorf("Progress() after reset = %v, want empty", got)
	}
	if got := s.ID(); got != "s1" {
		t.Errorf("ID() after reset = %q, want s1", got)
	}
}
