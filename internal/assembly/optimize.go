package assembly

import (
	"github.com/nvandessel/nudge/internal/models"
)

// headerOverhead is the estimated cost of the block header and footer.
const headerOverhead = 10

// Optimizer fits ranked reminders into a token budget.
type Optimizer struct {
	maxTokens int
}

// OptimizationResult contains the result of token optimization
type OptimizationResult struct {
	// Reminders that fit within the token budget
	Included []models.Reminder `json:"included"`

	// Reminders excluded due to token limits
	Excluded []models.Reminder `json:"excluded"`

	TokensUsed      int  `json:"tokens_used"`
	TokensAvailable int  `json:"tokens_available"`
	Truncated       bool `json:"truncated"`
}

// NewOptimizer creates a token optimizer. maxTokens <= 0 means no limit.
func NewOptimizer(maxTokens int) *Optimizer {
	return &Optimizer{maxTokens: maxTokens}
}

// Optimize walks reminders in rank order and keeps each one that still
// fits. A large reminder that does not fit does not block smaller ones
// ranked after it.
func (o *Optimizer) Optimize(reminders []models.Reminder) OptimizationResult {
	res := OptimizationResult{TokensAvailable: o.maxTokens}

	if o.maxTokens <= 0 {
		res.Included = reminders
		for _, r := range reminders {
			res.TokensUsed += estimateReminderTokens(r)
		}
		return res
	}

	for _, r := range reminders {
		cost := estimateReminderTokens(r)
		if res.TokensUsed+cost+headerOverhead <= o.maxTokens {
			res.Included = append(res.Included, r)
			res.TokensUsed += cost
		} else {
			res.Excluded = append(res.Excluded, r)
		}
	}
	res.Truncated = len(res.Excluded) > 0
	return res
}

// estimateReminderTokens estimates one rendered constraint: its title line
// plus one bullet per reminder.
func estimateReminderTokens(r models.Reminder) int {
	total := estimateTokens(title(r)) + 2
	for _, text := range r.Reminders {
		total += estimateTokens(text) + 1
	}
	return total
}
