package ratelimit

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fixedClock returns a limiter whose clock only moves when advance is called.
func fixedClock(r float64, burst int) (*Limiter, func(time.Duration)) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(r, burst)
	l.nowFunc = func() time.Time { return now }
	return l, func(d time.Duration) { now = now.Add(d) }
}

func TestLimiter_Allow(t *testing.T) {
	type step struct {
		wait time.Duration
		want bool
	}

	tests := []struct {
		name  string
		rate  float64
		burst int
		steps []step
	}{
		{
			name: "burst then reject",
			rate: 1, burst: 2,
			steps: []step{{0, true}, {0, true}, {0, false}},
		},
		{
			name: "refill after wait",
			rate: 10, burst: 2,
			steps: []step{{0, true}, {0, true}, {0, false}, {200 * time.Millisecond, true}, {0, true}, {0, false}},
		},
		{
			name: "refill is capped at burst",
			rate: 100, burst: 2,
			steps: []step{{0, true}, {0, true}, {10 * time.Second, true}, {0, true}, {0, false}},
		},
		{
			name: "partial refill keeps remaining tokens",
			rate: 2, burst: 3,
			steps: []step{{0, true}, {0, true}, {250 * time.Millisecond, true}, {0, false}},
		},
		{
			name: "zero rate never refills",
			rate: 0, burst: 1,
			steps: []step{{0, true}, {time.Hour, false}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, advance := fixedClock(tt.rate, tt.burst)
			for i, s := range tt.steps {
				advance(s.wait)
				if got := l.Allow("nudge_select"); got != s.want {
					t.Errorf("step %d: Allow() = %v, want %v", i, got, s.want)
				}
			}
		})
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := fixedClock(1, 1)

	if !l.Allow("nudge_select") || l.Allow("nudge_select") {
		t.Fatal("nudge_select bucket should hold exactly one token")
	}
	if !l.Allow("nudge_list") {
		t.Error("nudge_list shares a bucket with nudge_select")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := fixedClock(1, 50)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("nudge_select") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Errorf("allowed %d calls on a frozen clock, want the burst of 50", got)
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()

	want := map[string]int{
		"nudge_select":        20,
		"nudge_complete":      10,
		"nudge_explain":       5,
		"nudge_list":          10,
		"nudge_check_removal": 5,
		"nudge_stats":         3,
	}
	if len(limiters) != len(want) {
		t.Errorf("got %d limiters, want %d", len(limiters), len(want))
	}
	for tool, burst := range want {
		l, ok := limiters[tool]
		if !ok {
			t.Errorf("no limiter for %s", tool)
			continue
		}
		if l.burst != burst {
			t.Errorf("%s burst = %d, want %d", tool, l.burst, burst)
		}
	}
	if limiters["nudge_select"].rate <= limiters["nudge_stats"].rate {
		t.Error("selection should have the most headroom")
	}
}

func TestCheckLimit(t *testing.T) {
	limiters := ToolLimiters{"nudge_stats": NewLimiter(0, 2)}

	for i := 0; i < 2; i++ {
		if err := CheckLimit(limiters, "nudge_stats"); err != nil {
			t.Fatalf("call %d: CheckLimit() = %v", i+1, err)
		}
	}

	err := CheckLimit(limiters, "nudge_stats")
	if !errors.Is(err, ErrLimited) {
		t.Fatalf("CheckLimit() = %v, want ErrLimited", err)
	}
	if !strings.Contains(err.Error(), "nudge_stats") {
		t.Errorf("error %q does not name the tool", err)
	}

	if err := CheckLimit(limiters, "nudge_select"); err != nil {
		t.Errorf("a tool without a limiter was limited: %v", err)
	}
	if err := CheckLimit(nil, "nudge_select"); err != nil {
		t.Errorf("nil limiters = %v", err)
	}
}
