// Package constants provides named constants used throughout the nudge codebase.
// This centralizes the engine's tunables; internal/config can override most of them.
package constants

// Trigger matching constants
const (
	// DefaultConfidenceThreshold is applied when a trigger does not declare one.
	DefaultConfidenceThreshold = 0.5

	// KeywordWeight is the weight of the keyword overlap fraction.
	KeywordWeight = 0.5

	// FilePatternWeight is the weight of the file-pattern match.
	FilePatternWeight = 0.3

	// ContextPatternWeight is the weight of the context-pattern overlap fraction.
	ContextPatternWeight = 0.2
)

// Weights are proportional, not required to sum to 1.0. The trigger engine
// normalizes by the total weight of the dimensions a trigger declares, so a
// keyword-only trigger that fully matches scores 1.0.

// Confidence boost constants
const (
	// DefaultBoostFactor multiplies the score of a constraint whose domain
	// indicators appear in the interaction.
	DefaultBoostFactor = 1.1

	// MaxScore is the clamp applied after every boost.
	MaxScore = 1.0
)

// DefaultStrongIndicators are the keywords that strongly signal a domain.
// The domain of a constraint is its id prefix before the first '.'.
var DefaultStrongIndicators = map[string][]string{
	"tdd":          {"test", "failing", "red", "green", "assert"},
	"refactor":     {"refactor", "rename", "extract", "cleanup"},
	"architecture": {"interface", "dependency", "layer", "module"},
	"security":     {"auth", "secret", "token", "password", "credential"},
	"review":       {"review", "pr", "diff"},
}

// Scheduling and selection constants
const (
	// DefaultCadence is the interaction interval between injections.
	DefaultCadence = 3

	// DefaultTopK caps how many reminders one injection surfaces.
	DefaultTopK = 5
)

// Library reload constants
const (
	// DefaultReloadDebounceMillis collapses bursts of file events into one reload.
	DefaultReloadDebounceMillis = 200
)

// File locations, relative to the user's home directory.
const (
	// ConfigDirName is the per-user directory holding config and decision logs.
	ConfigDirName = ".nudge"

	// ConfigFileName is the configuration file inside ConfigDirName.
	ConfigFileName = "config.yaml"

	// LibraryFileName is the default constraint document inside ConfigDirName.
	LibraryFileName = "constraints.yaml"

	// DecisionLogFileName is the JSONL decision trace inside the log dir.
	DecisionLogFileName = "decisions.jsonl"
)
