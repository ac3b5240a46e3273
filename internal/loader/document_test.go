package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/nudge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePack = `
version: "1.0"
constraints:
  - id: tdd.test-first
    title: Write the failing test first
    priority: 0.9
    trigger:
      keywords: [Test, implement, test]
      file_patterns: ["**/*_test.go"]
      confidence_threshold: 0.4
    reminders:
      - Start from a failing test.
      - "## Do not skip"
  - id: tdd.refactor
    title: Refactor on green
    priority: 0.6
    trigger:
      keywords: [refactor]
    reminders:
      - Clean up once the tests pass.
  - id: tdd.cycle
    title: Red, green, refactor
    priority: 0.8
    trigger:
      context_patterns: [testing]
    composition_type: Sequential
    components:
      - {id: tdd.test-first, sequence_order: 1}
      - {id: tdd.refactor, sequence_order: 2}
`

func TestParse(t *testing.T) {
	pack, err := Parse([]byte(samplePack))
	require.NoError(t, err)

	assert.Equal(t, "1.0", pack.Version())
	assert.Equal(t, 3, pack.Len())

	ids := make([]models.ConstraintID, 0, pack.Len())
	for _, c := range pack.Constraints() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []models.ConstraintID{"tdd.test-first", "tdd.cycle", "tdd.refactor"}, ids)

	first, ok := pack.Get("tdd.test-first")
	require.True(t, ok)
	assert.Equal(t, []string{"implement", "test"}, first.Trigger.Keywords)
	assert.Equal(t, 0.4, first.Trigger.ConfidenceThreshold)
	assert.Equal(t, []string{"Start from a failing test.", "- Do not skip"}, first.Reminders)

	refactor, ok := pack.Get("tdd.refactor")
	require.True(t, ok)
	assert.Equal(t, 0.5, refactor.Trigger.ConfidenceThreshold, "missing threshold takes the default")

	cycle, ok := pack.Get("tdd.cycle")
	require.True(t, ok)
	require.True(t, cycle.IsComposite())
	assert.Equal(t, models.CompositionSequential, cycle.Composition.Type)
	assert.Len(t, cycle.Composition.Components, 2)
	assert.Equal(t, []models.ConstraintID{"tdd.cycle"}, pack.ReferencedBy("tdd.refactor"))
}

func TestParse_DefaultThresholdOption(t *testing.T) {
	pack, err := Parse([]byte(samplePack), WithDefaultThreshold(0.7))
	require.NoError(t, err)

	refactor, _ := pack.Get("tdd.refactor")
	assert.Equal(t, 0.7, refactor.Trigger.ConfidenceThreshold)

	first, _ := pack.Get("tdd.test-first")
	assert.Equal(t, 0.4, first.Trigger.ConfidenceThreshold, "explicit threshold wins")
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
		issue string
	}{
		{
			name:  "empty document",
			doc:   "",
			field: "document",
			issue: "blank",
		},
		{
			name:  "malformed yaml",
			doc:   "version: [1.0\n",
			field: "document",
			issue: "malformed",
		},
		{
			name:  "unknown key",
			doc:   "version: \"1\"\nconstraints:\n  - id: a\n    keyword: [x]\n",
			field: "document",
			issue: "malformed",
		},
		{
			name:  "missing version",
			doc:   "constraints:\n  - id: a\n    trigger: {keywords: [x]}\n",
			field: "version",
			issue: "blank",
		},
		{
			name: "duplicate id",
			doc: `version: "1"
constraints:
  - {id: a, trigger: {keywords: [x]}}
  - {id: a, trigger: {keywords: [y]}}
`,
			field: "id",
			issue: "duplicate",
		},
		{
			name: "unknown composition type",
			doc: `version: "1"
constraints:
  - {id: a, trigger: {keywords: [x]}}
  - id: b
    composition_type: circular
    components: [{id: a}]
`,
			field: "composition_type",
			issue: "unknown",
		},
		{
			name: "components without type",
			doc: `version: "1"
constraints:
  - {id: a, trigger: {keywords: [x]}}
  - id: b
    components: [{id: a}]
`,
			field: "composition_type",
			issue: "missing",
		},
		{
			name: "dangling component",
			doc: `version: "1"
constraints:
  - id: b
    composition_type: parallel
    components: [{id: ghost}]
`,
			field: "components",
			issue: "dangling",
		},
		{
			name: "priority out of range",
			doc: `version: "1"
constraints:
  - {id: a, priority: 1.5, trigger: {keywords: [x]}}
`,
			field: "priority",
			issue: "out-of-range",
		},
		{
			name: "invalid glob",
			doc: `version: "1"
constraints:
  - {id: a, trigger: {file_patterns: ["src/[a"]}}
`,
			field: "trigger.file_patterns",
			issue: "invalid-pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrValidation), "error %v should be a validation error", err)

			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.issue, ve.Issue)
		})
	}
}

func TestParse_CycleAcrossComposites(t *testing.T) {
	doc := `version: "1"
constraints:
  - id: a
    composition_type: parallel
    components: [{id: b}]
  - id: b
    composition_type: parallel
    components: [{id: a}]
`
	_, err := Parse([]byte(doc))
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "cycle", ve.Issue)
	assert.Equal(t, "a -> b -> a", ve.Detail)
}

func TestParse_LevelsAndJSON(t *testing.T) {
	doc := `{
  "version": "2",
  "constraints": [
    {"id": "arch.boundaries", "trigger": {"keywords": ["interface"]}},
    {"id": "arch.naming", "trigger": {"keywords": ["rename"]}},
    {"id": "arch.layers", "composition_type": "hierarchical",
     "levels": [{"level": 0, "name": "design"}, {"level": 1, "name": "code"}],
     "components": [
       {"id": "arch.boundaries", "hierarchy_level": 0},
       {"id": "arch.naming", "hierarchy_level": 1}
     ]}
  ]
}`
	pack, err := Parse([]byte(doc))
	require.NoError(t, err)

	layers, ok := pack.Get("arch.layers")
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, layers.Composition.DeclaredLevels())
	assert.Equal(t, "design", layers.Composition.Levels[0].Name)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constraints.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePack), 0600))

	pack, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, pack.Len())
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEncode_RoundTripsThroughParse(t *testing.T) {
	pack, err := Parse([]byte(samplePack))
	require.NoError(t, err)

	doc := Encode(pack)
	again, err := doc.Build()
	require.NoError(t, err)

	assert.Equal(t, pack.Version(), again.Version())
	assert.Equal(t, pack.Constraints(), again.Constraints())
}
