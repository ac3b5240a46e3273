package trigger

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nvandessel/nudge/internal/models"
)

// Explanation describes why a constraint is or isn't activated.
type Explanation struct {
	ConstraintID models.ConstraintID `json:"constraint_id"`
	Activated    bool                `json:"activated"`
	Reason       string              `json:"reason"`
	Score        float64             `json:"score"`
	BaseScore    float64             `json:"base_score"`
	Threshold    float64             `json:"threshold"`
	Dimensions   []DimensionResult   `json:"dimensions,omitempty"`
	Boosts       []string            `json:"boosts,omitempty"`
	VetoedBy     string              `json:"vetoed_by,omitempty"`
}

// DimensionResult shows the result of one match dimension.
type DimensionResult struct {
	Dimension string   `json:"dimension"` // "keywords", "file_patterns", "context_patterns"
	Fraction  float64  `json:"fraction"`
	Matched   []string `json:"matched,omitempty"`
	Declared  int      `json:"declared"`
}

// Explain evaluates c for ctx and reports the breakdown.
func (e *Engine) Explain(c models.Constraint, ctx *models.TriggerContext) Explanation {
	r := e.Evaluate(c, ctx)
	t := c.Trigger
	ex := Explanation{
		ConstraintID: c.ID,
		Activated:    r.Activated,
		Score:        r.Score,
		BaseScore:    r.BaseScore,
		Threshold:    t.ConfidenceThreshold,
		Boosts:       r.Boosts,
		VetoedBy:     r.VetoedBy,
	}

	if len(t.Keywords) > 0 {
		ex.Dimensions = append(ex.Dimensions, DimensionResult{
			Dimension: "keywords", Fraction: r.KeywordScore, Matched: r.MatchedKeywords, Declared: len(t.Keywords),
		})
	}
	if len(t.FilePatterns) > 0 {
		d := DimensionResult{Dimension: "file_patterns", Fraction: r.FileScore, Declared: len(t.FilePatterns)}
		if r.MatchedFile != "" {
			d.Matched = []string{r.MatchedFile}
		}
		ex.Dimensions = append(ex.Dimensions, d)
	}
	if len(t.ContextPatterns) > 0 {
		ex.Dimensions = append(ex.Dimensions, DimensionResult{
			Dimension: "context_patterns", Fraction: r.ContextScore, Matched: r.MatchedPatterns, Declared: len(t.ContextPatterns),
		})
	}

	switch {
	case ctx == nil:
		ex.Reason = "No context supplied"
	case t.IsEmpty():
		ex.Reason = "Trigger declares no keywords or patterns - never active"
	case r.Vetoed():
		ex.Reason = fmt.Sprintf("Vetoed by anti-pattern %q", r.VetoedBy)
	case r.Activated:
		ex.Reason = fmt.Sprintf("Score %.2f reaches threshold %.2f", r.Score, t.ConfidenceThreshold)
	case r.Score == 0:
		ex.Reason = "Nothing in the context matched"
	default:
		ex.Reason = fmt.Sprintf("Score %.2f below threshold %.2f", r.Score, t.ConfidenceThreshold)
	}
	return ex
}

// ValidatePatterns checks every glob in t so that malformed patterns are
// rejected when a pack is built rather than silently never matching.
func ValidatePatterns(id models.ConstraintID, t models.TriggerDefinition) error {
	groups := []struct {
		field    string
		patterns []string
	}{
		{"trigger.file_patterns", t.FilePatterns},
		{"trigger.context_patterns", t.ContextPatterns},
		{"trigger.anti_patterns", t.AntiPatterns},
	}
	for _, g := range groups {
		for _, p := range g.patterns {
			if strings.TrimSpace(p) == "" || !doublestar.ValidatePattern(p) {
				return &models.ValidationError{ConstraintID: id, Field: g.field, Issue: "invalid-pattern", Detail: p}
			}
		}
	}
	return nil
}
