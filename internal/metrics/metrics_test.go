package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSelection(t *testing.T) {
	m := New()

	m.RecordSelection(Selection{
		Outcome:    OutcomeInjected,
		Duration:   2 * time.Millisecond,
		Activated:  3,
		Injected:   []string{"tdd.test-first", "review.small-diffs"},
		Suppressed: []string{"waiting"},
	})
	m.RecordSelection(Selection{Outcome: OutcomeSkipped, Duration: time.Microsecond})
	m.RecordSelection(Selection{
		Outcome:  OutcomeInjected,
		Duration: time.Millisecond,
		Injected: []string{"tdd.test-first"},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.selections.WithLabelValues(OutcomeInjected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.selections.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.injected.WithLabelValues("tdd.test-first")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), snap.SelectionCount)
	assert.InDelta(t, 0.003001, snap.SelectionSeconds, 1e-9)
	assert.Equal(t, 1.0, snap.Suppressed["waiting"])
	assert.Equal(t, []string{"tdd.test-first", "review.small-diffs"}, snap.TopInjected(5))
	assert.Equal(t, []string{"tdd.test-first"}, snap.TopInjected(1))
}

func TestRecordReload(t *testing.T) {
	m := New()

	m.RecordReload(12, nil)
	m.RecordReload(0, errors.New("bad document"))

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Reloads["ok"])
	assert.Equal(t, 1.0, snap.Reloads["error"])
	assert.Equal(t, 12.0, snap.PackConstraints, "a failed reload keeps the pack size")

	m.SetPackSize(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.packSize))
}

func TestRecordToolCall(t *testing.T) {
	m := New()

	m.RecordToolCall("nudge_select", nil)
	m.RecordToolCall("nudge_select", nil)
	m.RecordToolCall("nudge_explain", errors.New("unknown constraint"))

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2.0, snap.ToolCalls["nudge_select/ok"])
	assert.Equal(t, 1.0, snap.ToolCalls["nudge_explain/error"])
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordToolCall("nudge_list", nil)

	snap, err := b.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.ToolCalls)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordSelection(Selection{Outcome: OutcomeInjected})
		m.RecordReload(1, nil)
		m.SetPackSize(1)
		m.RecordToolCall("nudge_stats", nil)
	})
	assert.Nil(t, m.Registry())

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.NotNil(t, snap.Selections)
}
