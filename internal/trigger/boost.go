package trigger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/nudge/internal/constants"
	"github.com/nvandessel/nudge/internal/models"
)

// BoostStrategy is a pure score adjustment layered on top of the base
// trigger score. Strategies are data: an ordered list of predicate and
// transform pairs assembled from configuration. Apply may only raise the
// score; the engine ignores results that would lower it and clamps to 1.
type BoostStrategy struct {
	Name      string
	AppliesTo func(c models.Constraint, ctx *models.TriggerContext) bool
	Apply     func(score float64) float64
}

// BoostRule is the configuration form of a domain indicator boost.
type BoostRule struct {
	// Domain is the constraint id prefix before the first '.', e.g. "tdd".
	Domain string `json:"domain" yaml:"domain"`

	// Indicators are the strong-indicator keywords of the domain.
	Indicators []string `json:"indicators" yaml:"indicators"`

	// Factor multiplies the score; must be >= 1.
	Factor float64 `json:"factor" yaml:"factor"`
}

// Validate checks the rule.
func (r BoostRule) Validate() error {
	if strings.TrimSpace(r.Domain) == "" {
		return fmt.Errorf("boost rule: domain is required")
	}
	if len(r.Indicators) == 0 {
		return fmt.Errorf("boost rule %s: at least one indicator is required", r.Domain)
	}
	if r.Factor < 1 {
		return fmt.Errorf("boost rule %s: factor must be >= 1, got %g", r.Domain, r.Factor)
	}
	return nil
}

// Multiply returns a transform scaling the score by factor.
func Multiply(factor float64) func(float64) float64 {
	return func(score float64) float64 {
		return score * factor
	}
}

// Domain returns the id prefix before the first '.', or "" for ids
// without one.
func Domain(id models.ConstraintID) string {
	s := string(id)
	if i := strings.IndexByte(s, '.'); i > 0 {
		return strings.ToLower(s[:i])
	}
	return ""
}

// DomainIndicatorBoost builds the default boost policy for one domain: it
// applies when the constraint belongs to the domain and some indicator is
// both in the constraint's trigger keywords and in the context keywords.
func DomainIndicatorBoost(rule BoostRule) BoostStrategy {
	domain := strings.ToLower(strings.TrimSpace(rule.Domain))
	indicators := make(map[string]struct{}, len(rule.Indicators))
	for _, k := range rule.Indicators {
		indicators[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}

	return BoostStrategy{
		Name: "indicator:" + domain,
		AppliesTo: func(c models.Constraint, ctx *models.TriggerContext) bool {
			if ctx == nil || Domain(c.ID) != domain {
				return false
			}
			shared := make(map[string]struct{})
			for _, k := range c.Trigger.Keywords {
				if _, ok := indicators[k]; ok {
					shared[k] = struct{}{}
				}
			}
			if len(shared) == 0 {
				return false
			}
			for _, k := range ctx.Keywords {
				if _, ok := shared[strings.ToLower(strings.TrimSpace(k))]; ok {
					return true
				}
			}
			return false
		},
		Apply: Multiply(rule.Factor),
	}
}

// BoostsFromRules compiles rules into strategies, keeping rule order.
func BoostsFromRules(rules []BoostRule) ([]BoostStrategy, error) {
	out := make([]BoostStrategy, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		out = append(out, DomainIndicatorBoost(r))
	}
	return out, nil
}

// DefaultBoostRules returns the shipped indicator rules, ordered by domain.
func DefaultBoostRules() []BoostRule {
	domains := make([]string, 0, len(constants.DefaultStrongIndicators))
	for d := range constants.DefaultStrongIndicators {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	rules := make([]BoostRule, 0, len(domains))
	for _, d := range domains {
		rules = append(rules, BoostRule{
			Domain:     d,
			Indicators: append([]string(nil), constants.DefaultStrongIndicators[d]...),
			Factor:     constants.DefaultBoostFactor,
		})
	}
	return rules
}

// DefaultBoosts returns the strategies for DefaultBoostRules.
func DefaultBoosts() []BoostStrategy {
	boosts, _ := BoostsFromRules(DefaultBoostRules())
	return boosts
}
