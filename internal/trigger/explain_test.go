package trigger

import (
	"errors"
	"testing"

	"github.com/nvandessel/nudge/internal/models"
)

func TestExplain(t *testing.T) {
	e := NewDefaultEngine()
	c := constraint("tdd.test-first", 0.9, trig([]string{"test", "failing"}, []string{"**/*_test.go"}, []string{"testing"}, []string{"wip"}, 0.5))

	tests := []struct {
		name       string
		ctx        *models.TriggerContext
		wantReason string
		wantOn     bool
	}{
		{"nil context", nil, "No context supplied", false},
		{"no match", &models.TriggerContext{Keywords: []string{"deploy"}}, "Nothing in the context matched", false},
		{"vetoed", &models.TriggerContext{Keywords: []string{"test", "wip"}}, `Vetoed by anti-pattern "wip"`, false},
		{"below threshold", &models.TriggerContext{Keywords: []string{"test"}}, "Score 0.28 below threshold 0.50", false},
		{
			"activated",
			&models.TriggerContext{Keywords: []string{"test", "failing"}, FilePath: "x_test.go", ContextPatterns: []string{"testing"}},
			"Score 1.00 reaches threshold 0.50",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := e.Explain(c, tt.ctx)
			if ex.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", ex.Reason, tt.wantReason)
			}
			if ex.Activated != tt.wantOn {
				t.Errorf("Activated = %v, want %v", ex.Activated, tt.wantOn)
			}
			if ex.ConstraintID != c.ID || ex.Threshold != 0.5 {
				t.Errorf("header = %s/%v", ex.ConstraintID, ex.Threshold)
			}
		})
	}
}

func TestExplain_Dimensions(t *testing.T) {
	e := NewDefaultEngine()
	c := constraint("tdd.test-first", 0.9, trig([]string{"test", "failing"}, []string{"**/*_test.go"}, []string{"testing"}, nil, 0.3))
	ctx := &models.TriggerContext{Keywords: []string{"test"}, FilePath: "pkg/a_test.go"}

	ex := e.Explain(c, ctx)
	if len(ex.Dimensions) != 3 {
		t.Fatalf("Dimensions = %+v, want 3", ex.Dimensions)
	}

	kw, file, cp := ex.Dimensions[0], ex.Dimensions[1], ex.Dimensions[2]
	if kw.Dimension != "keywords" || !approx(kw.Fraction, 0.5) || kw.Declared != 2 || len(kw.Matched) != 1 || kw.Matched[0] != "test" {
		t.Errorf("keywords = %+v", kw)
	}
	if file.Dimension != "file_patterns" || file.Fraction != 1 || len(file.Matched) != 1 || file.Matched[0] != "**/*_test.go" {
		t.Errorf("file_patterns = %+v", file)
	}
	if cp.Dimension != "context_patterns" || cp.Fraction != 0 || len(cp.Matched) != 0 {
		t.Errorf("context_patterns = %+v", cp)
	}

	// (0.5*0.5 + 0.3) / 1.0 = 0.55 base, boosted by the tdd indicator.
	if !approx(ex.BaseScore, 0.55) || !approx(ex.Score, 0.605) {
		t.Errorf("BaseScore = %v, Score = %v", ex.BaseScore, ex.Score)
	}
	if len(ex.Boosts) != 1 || ex.Boosts[0] != "indicator:tdd" {
		t.Errorf("Boosts = %v", ex.Boosts)
	}
}

func TestExplain_EmptyTrigger(t *testing.T) {
	ex := NewDefaultEngine().Explain(constraint("x", 0.5, trig(nil, nil, nil, nil, 0)), &models.TriggerContext{Keywords: []string{"x"}})
	if ex.Activated || len(ex.Dimensions) != 0 {
		t.Errorf("Explain = %+v", ex)
	}
	if ex.Reason != "Trigger declares no keywords or patterns - never active" {
		t.Errorf("Reason = %q", ex.Reason)
	}
}

func TestValidatePatterns(t *testing.T) {
	tests := []struct {
		name      string
		trigger   models.TriggerDefinition
		wantField string
	}{
		{"valid", models.TriggerDefinition{FilePatterns: []string{"**/*.go", "{a,b}/*.md"}, ContextPatterns: []string{"test*"}}, ""},
		{"bad file pattern", models.TriggerDefinition{FilePatterns: []string{"src/[a-"}}, "trigger.file_patterns"},
		{"bad context pattern", models.TriggerDefinition{ContextPatterns: []string{"{open"}}, "trigger.context_patterns"},
		{"blank anti-pattern", models.TriggerDefinition{AntiPatterns: []string{" "}}, "trigger.anti_patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatterns("x", tt.trigger)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidatePatterns() error = %v", err)
				}
				return
			}
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Field != tt.wantField || ve.Issue != "invalid-pattern" {
				t.Errorf("got %s/%s, want %s/invalid-pattern", ve.Field, ve.Issue, tt.wantField)
			}
		})
	}
}
