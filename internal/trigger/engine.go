// Package trigger scores a constraint's trigger definition against an
// interaction context and decides whether the constraint is activated.
//
// Scoring is a weighted overlap of three independent match fractions
// (keywords, file patterns, context patterns), normalised over the
// dimensions the trigger declares. Anti-patterns veto activation outright.
// Registered boost strategies may then raise the score. Everything here is
// pure: the same (constraint, context) pair always scores the same.
package trigger

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nvandessel/nudge/internal/constants"
	"github.com/nvandessel/nudge/internal/models"
)

// Weights configures the relative weight of each match dimension.
type Weights struct {
	Keyword        float64 `json:"keyword" yaml:"keyword"`
	FilePattern    float64 `json:"file_pattern" yaml:"file_pattern"`
	ContextPattern float64 `json:"context_pattern" yaml:"context_pattern"`
}

// DefaultWeights returns the default dimension weights.
func DefaultWeights() Weights {
	return Weights{
		Keyword:        constants.KeywordWeight,
		FilePattern:    constants.FilePatternWeight,
		ContextPattern: constants.ContextPatternWeight,
	}
}

// Engine scores triggers. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	weights Weights
	boosts  []BoostStrategy
}

// NewEngine creates an engine. Negative weights are replaced by the
// defaults; boosts are applied in the order given.
func NewEngine(weights Weights, boosts ...BoostStrategy) *Engine {
	def := DefaultWeights()
	if weights.Keyword < 0 {
		weights.Keyword = def.Keyword
	}
	if weights.FilePattern < 0 {
		weights.FilePattern = def.FilePattern
	}
	if weights.ContextPattern < 0 {
		weights.ContextPattern = def.ContextPattern
	}
	return &Engine{
		weights: weights,
		boosts:  append([]BoostStrategy(nil), boosts...),
	}
}

// NewDefaultEngine creates an engine with default weights and the default
// strong-indicator boosts.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultWeights(), DefaultBoosts()...)
}

// Weights returns the configured weights.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Result is the outcome of scoring one constraint against one context.
type Result struct {
	Constraint models.Constraint

	// Component fractions, each in [0,1].
	KeywordScore float64
	FileScore    float64
	ContextScore float64

	// BaseScore is the normalised weighted sum before boosts.
	BaseScore float64

	// Score is the final confidence after veto and boosts.
	Score float64

	MatchedKeywords []string
	MatchedPatterns []string
	MatchedFile     string // the file pattern that matched, if any

	// VetoedBy is the anti-pattern that forced the score to zero.
	VetoedBy string

	// Boosts lists the names of the strategies that raised the score.
	Boosts []string

	Activated bool
}

// Vetoed reports whether an anti-pattern excluded the constraint.
func (r Result) Vetoed() bool {
	return r.VetoedBy != ""
}

// BaseScore scores a bare trigger, without boosts.
func (e *Engine) BaseScore(t models.TriggerDefinition, ctx *models.TriggerContext) float64 {
	if ctx == nil {
		return 0
	}
	r := e.evaluate(models.Constraint{Trigger: t}, newSignals(ctx), ctx, false)
	return r.Score
}

// Score returns the boosted confidence of c for ctx.
func (e *Engine) Score(c models.Constraint, ctx *models.TriggerContext) float64 {
	return e.Evaluate(c, ctx).Score
}

// IsActivated reports whether the score reaches the trigger threshold and
// no anti-pattern matched.
func (e *Engine) IsActivated(c models.Constraint, ctx *models.TriggerContext) bool {
	return e.Evaluate(c, ctx).Activated
}

// Evaluate scores c for ctx with the full breakdown.
func (e *Engine) Evaluate(c models.Constraint, ctx *models.TriggerContext) Result {
	if ctx == nil {
		return Result{Constraint: c}
	}
	return e.evaluate(c, newSignals(ctx), ctx, true)
}

// Filter returns the constraints activated by ctx, keeping input order.
func (e *Engine) Filter(cs []models.Constraint, ctx *models.TriggerContext) []models.Constraint {
	out := make([]models.Constraint, 0)
	if ctx == nil {
		return out
	}
	sig := newSignals(ctx)
	for _, c := range cs {
		if e.evaluate(c, sig, ctx, true).Activated {
			out = append(out, c)
		}
	}
	return out
}

// Rank evaluates every constraint and returns the activated ones sorted by
// score desc, then priority desc, then id.
func (e *Engine) Rank(cs []models.Constraint, ctx *models.TriggerContext) []Result {
	results := make([]Result, 0)
	if ctx == nil {
		return results
	}
	sig := newSignals(ctx)
	for _, c := range cs {
		r := e.evaluate(c, sig, ctx, true)
		if r.Activated {
			results = append(results, r)
		}
	}
	sortResults(results)
	return results
}

// MatchesCategory reports whether c's trigger matches a bare category, for
// callers that have no full context. A category matches a context pattern
// or keyword; an anti-pattern on the category excludes.
func (e *Engine) MatchesCategory(c models.Constraint, category string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return false
	}
	for _, anti := range c.Trigger.AntiPatterns {
		if matchPattern(anti, category) {
			return false
		}
	}
	for _, p := range c.Trigger.ContextPatterns {
		if matchPattern(p, category) {
			return true
		}
	}
	for _, k := range c.Trigger.Keywords {
		if k == category {
			return true
		}
	}
	return false
}

func (e *Engine) evaluate(c models.Constraint, sig *signals, ctx *models.TriggerContext, boost bool) Result {
	t := c.Trigger
	r := Result{Constraint: c}

	if t.IsEmpty() {
		return r
	}

	if anti, ok := sig.antiMatch(t.AntiPatterns); ok {
		r.VetoedBy = anti
		return r
	}

	var weighted, total float64

	if len(t.Keywords) > 0 {
		for _, k := range t.Keywords {
			if sig.hasKeyword(k) {
				r.MatchedKeywords = append(r.MatchedKeywords, k)
			}
		}
		r.KeywordScore = float64(len(r.MatchedKeywords)) / float64(len(t.Keywords))
		weighted += r.KeywordScore * e.weights.Keyword
		total += e.weights.Keyword
	}

	if len(t.FilePatterns) > 0 {
		if p, ok := sig.fileMatch(t.FilePatterns); ok {
			r.MatchedFile = p
			r.FileScore = 1
		}
		weighted += r.FileScore * e.weights.FilePattern
		total += e.weights.FilePattern
	}

	if len(t.ContextPatterns) > 0 {
		for _, p := range t.ContextPatterns {
			if sig.contextMatch(p) {
				r.MatchedPatterns = append(r.MatchedPatterns, p)
			}
		}
		r.ContextScore = float64(len(r.MatchedPatterns)) / float64(len(t.ContextPatterns))
		weighted += r.ContextScore * e.weights.ContextPattern
		total += e.weights.ContextPattern
	}

	if total > 0 {
		r.BaseScore = clamp(weighted / total)
	}
	r.Score = r.BaseScore

	if boost && r.Score > 0 {
		for _, b := range e.boosts {
			if b.AppliesTo == nil || b.Apply == nil || !b.AppliesTo(c, ctx) {
				continue
			}
			boosted := clamp(b.Apply(r.Score))
			if boosted > r.Score {
				r.Score = boosted
				r.Boosts = append(r.Boosts, b.Name)
			}
		}
	}

	r.Activated = r.Score > 0 && r.Score >= t.ConfidenceThreshold
	return r
}

// signals is a context flattened into lookup sets, built once per call so
// scoring many constraints does not re-normalise the context.
type signals struct {
	keywords map[string]struct{}
	context  map[string]struct{}
	list     []string // keywords and context signals, for glob patterns
	file     string
	fileBase string
}

func newSignals(ctx *models.TriggerContext) *signals {
	s := &signals{
		keywords: make(map[string]struct{}, len(ctx.Keywords)),
		context:  make(map[string]struct{}, len(ctx.ContextPatterns)+2*len(ctx.Categories)),
	}
	for _, k := range ctx.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			s.keywords[k] = struct{}{}
		}
	}
	addContext := func(v string) {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			s.context[v] = struct{}{}
		}
	}
	for _, p := range ctx.ContextPatterns {
		addContext(p)
	}
	for _, u := range ctx.Categories {
		addContext(u.Category)
		addContext(u.Value)
		addContext(u.Key())
	}
	for k := range s.keywords {
		s.list = append(s.list, k)
	}
	for v := range s.context {
		s.list = append(s.list, v)
	}
	sort.Strings(s.list)

	if ctx.FilePath != "" {
		s.file = strings.ReplaceAll(strings.TrimSpace(ctx.FilePath), "\\", "/")
		s.fileBase = path.Base(s.file)
	}
	return s
}

func (s *signals) hasKeyword(k string) bool {
	_, ok := s.keywords[k]
	return ok
}

func (s *signals) contextMatch(p string) bool {
	if !hasMeta(p) {
		_, ok := s.context[p]
		return ok
	}
	for v := range s.context {
		if ok, _ := doublestar.Match(p, v); ok {
			return true
		}
	}
	return false
}

func (s *signals) fileMatch(patterns []string) (string, bool) {
	if s.file == "" {
		return "", false
	}
	for _, p := range patterns {
		if matchFile(p, s.file, s.fileBase) {
			return p, true
		}
	}
	return "", false
}

// antiMatch checks anti-patterns against keywords, context signals and the
// lower-cased file path.
func (s *signals) antiMatch(antis []string) (string, bool) {
	for _, a := range antis {
		if !hasMeta(a) {
			if _, ok := s.keywords[a]; ok {
				return a, true
			}
			if _, ok := s.context[a]; ok {
				return a, true
			}
		} else {
			for _, v := range s.list {
				if ok, _ := doublestar.Match(a, v); ok {
					return a, true
				}
			}
		}
		if s.file != "" && matchFile(a, strings.ToLower(s.file), strings.ToLower(s.fileBase)) {
			return a, true
		}
	}
	return "", false
}

// matchFile matches a glob against the full slash path, and against the
// base name when the pattern has no directory part.
func matchFile(pattern, file, base string) bool {
	if ok, _ := doublestar.Match(pattern, file); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// matchPattern matches a lower-cased pattern against one value, exact unless
// the pattern carries glob metacharacters.
func matchPattern(pattern, value string) bool {
	if !hasMeta(pattern) {
		return pattern == value
	}
	ok, _ := doublestar.Match(pattern, value)
	return ok
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > constants.MaxScore {
		return constants.MaxScore
	}
	return v
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Constraint.Priority != b.Constraint.Priority {
			return a.Constraint.Priority > b.Constraint.Priority
		}
		return a.Constraint.ID < b.Constraint.ID
	})
}
