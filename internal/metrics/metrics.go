// Package metrics records nudge's selection activity with Prometheus
// collectors on a private registry. The registry is never exposed over
// HTTP; the MCP stats tool and the CLI read it through Snapshot.
package metrics

import (
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Selection outcomes.
const (
	OutcomeInjected = "injected"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// Metric names.
const (
	nameSelections = "nudge_selections_total"
	nameInjected   = "nudge_constraints_injected_total"
	nameActivated  = "nudge_constraints_activated_total"
	nameSuppressed = "nudge_constraints_suppressed_total"
	nameDuration   = "nudge_selection_duration_seconds"
	namePackSize   = "nudge_pack_constraints"
	nameReloads    = "nudge_library_reloads_total"
	nameToolCalls  = "nudge_tool_calls_total"
)

// Metrics holds the collectors. All methods are safe for concurrent use
// and no-ops on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	selections *prometheus.CounterVec
	injected   *prometheus.CounterVec
	activated  prometheus.Counter
	suppressed *prometheus.CounterVec
	duration   prometheus.Histogram
	packSize   prometheus.Gauge
	reloads    *prometheus.CounterVec
	toolCalls  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		selections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameSelections,
			Help: "Selections run, by outcome (injected, skipped, error)",
		}, []string{"outcome"}),
		injected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameInjected,
			Help: "Times each constraint was injected",
		}, []string{"constraint"}),
		activated: factory.NewCounter(prometheus.CounterOpts{
			Name: nameActivated,
			Help: "Constraints whose trigger activated at an injection point",
		}),
		suppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameSuppressed,
			Help: "Activated constraints held back by a composite, by reason",
		}, []string{"reason"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    nameDuration,
			Help:    "Time spent selecting constraints for one interaction",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		packSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: namePackSize,
			Help: "Constraints in the published pack",
		}),
		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameReloads,
			Help: "Library reload attempts, by status (ok, error)",
		}, []string{"status"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: nameToolCalls,
			Help: "MCP tool calls, by tool and status (ok, error)",
		}, []string{"tool", "status"}),
	}
}

// Registry exposes the underlying registry, e.g. for testutil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Selection describes one selector run.
type Selection struct {
	Outcome    string
	Duration   time.Duration
	Activated  int
	Injected   []string
	Suppressed []string // reasons, one per held-back constraint
}

// RecordSelection records one selector run.
func (m *Metrics) RecordSelection(s Selection) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(s.Outcome).Inc()
	m.duration.Observe(s.Duration.Seconds())
	if s.Activated > 0 {
		m.activated.Add(float64(s.Activated))
	}
	for _, id := range s.Injected {
		m.injected.WithLabelValues(id).Inc()
	}
	for _, reason := range s.Suppressed {
		m.suppressed.WithLabelValues(reason).Inc()
	}
}

// RecordReload records a library reload attempt and, on success, the new
// pack size.
func (m *Metrics) RecordReload(size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
	m.packSize.Set(float64(size))
}

// SetPackSize sets the published pack size.
func (m *Metrics) SetPackSize(size int) {
	if m == nil {
		return
	}
	m.packSize.Set(float64(size))
}

// RecordToolCall counts one MCP tool call.
func (m *Metrics) RecordToolCall(tool string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// Snapshot is a point-in-time copy of every collector.
type Snapshot struct {
	Selections       map[string]float64 `json:"selections"`
	Injected         map[string]float64 `json:"injected"`
	Activated        float64            `json:"activated"`
	Suppressed       map[string]float64 `json:"suppressed"`
	SelectionCount   uint64             `json:"selection_count"`
	SelectionSeconds float64            `json:"selection_seconds"`
	PackConstraints  float64            `json:"pack_constraints"`
	Reloads          map[string]float64 `json:"reloads"`
	ToolCalls        map[string]float64 `json:"tool_calls"` // keyed "tool/status"
}

// TopInjected returns up to n constraint ids by injection count desc,
// then id.
func (s Snapshot) TopInjected(n int) []string {
	ids := make([]string, 0, len(s.Injected))
	for id := range s.Injected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if s.Injected[ids[i]] != s.Injected[ids[j]] {
			return s.Injected[ids[i]] > s.Injected[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if n >= 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// Snapshot gathers the registry into a Snapshot.
func (m *Metrics) Snapshot() (Snapshot, error) {
	snap := Snapshot{
		Selections: map[string]float64{},
		Injected:   map[string]float64{},
		Suppressed: map[string]float64{},
		Reloads:    map[string]float64{},
		ToolCalls:  map[string]float64{},
	}
	if m == nil {
		return snap, nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return snap, err
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch mf.GetName() {
			case nameSelections:
				snap.Selections[label(metric, "outcome")] = metric.GetCounter().GetValue()
			case nameInjected:
				snap.Injected[label(metric, "constraint")] = metric.GetCounter().GetValue()
			case nameActivated:
				snap.Activated = metric.GetCounter().GetValue()
			case nameSuppressed:
				snap.Suppressed[label(metric, "reason")] = metric.GetCounter().GetValue()
			case nameDuration:
				snap.SelectionCount = metric.GetHistogram().GetSampleCount()
				snap.SelectionSeconds = metric.GetHistogram().GetSampleSum()
			case namePackSize:
				snap.PackConstraints = metric.GetGauge().GetValue()
			case nameReloads:
				snap.Reloads[label(metric, "status")] = metric.GetCounter().GetValue()
			case nameToolCalls:
				snap.ToolCalls[label(metric, "tool")+"/"+label(metric, "status")] = metric.GetCounter().GetValue()
			}
		}
	}
	return snap, nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
