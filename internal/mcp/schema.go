package mcp

import (
	"github.com/nvandessel/nudge/internal/models"
)

// CategoryInput is a user-defined category/value pair.
type CategoryInput struct {
	Category string  `json:"category" jsonschema:"Category name such as team or phase"`
	Value    string  `json:"value" jsonschema:"Category value"`
	Priority float64 `json:"priority,omitempty" jsonschema:"Priority of the pair in [0,1]"`
}

// contextArgs is the signal of one interaction, shared by the select and
// explain tools.
type contextArgs struct {
	prompt     string
	keywords   []string
	file       string
	patterns   []string
	categories []CategoryInput
}

// SelectInput defines the input for the nudge_select tool.
type SelectInput struct {
	Session     string          `json:"session,omitempty" jsonschema:"Session id; blank uses the default session"`
	Prompt      string          `json:"prompt,omitempty" jsonschema:"Free text of the current request or tool call; tokenised into keywords"`
	Keywords    []string        `json:"keywords,omitempty" jsonschema:"Extra keywords taken verbatim"`
	File        string          `json:"file,omitempty" jsonschema:"File being touched (absolute or relative to the project root)"`
	Patterns    []string        `json:"patterns,omitempty" jsonschema:"Declared activity patterns such as testing or refactoring"`
	Categories  []CategoryInput `json:"categories,omitempty" jsonschema:"User-defined category/value pairs"`
	Interaction int             `json:"interaction,omitempty" jsonschema:"Replay a given interaction number instead of advancing the session counter"`
	TopK        int             `json:"top_k,omitempty" jsonschema:"Maximum reminders to return; zero uses the server default"`
	Format      string          `json:"format,omitempty" jsonschema:"Rendering of the text field: markdown (default), xml or plain"`
}

func (in SelectInput) contextArgs() contextArgs {
	return contextArgs{prompt: in.Prompt, keywords: in.Keywords, file: in.File, patterns: in.Patterns, categories: in.Categories}
}

// SelectOutput defines the output for the nudge_select tool.
type SelectOutput struct {
	Session       string             `json:"session" jsonschema:"Session the interaction was counted against"`
	Interaction   int                `json:"interaction" jsonschema:"1-based interaction number"`
	Inject        bool               `json:"inject" jsonschema:"Whether this interaction is an injection point"`
	NextInjection int                `json:"next_injection" jsonschema:"Next interaction that will inject"`
	Reminders     []models.Reminder  `json:"reminders" jsonschema:"Selected reminders, highest priority first"`
	Text          string             `json:"text" jsonschema:"Reminders rendered for injection"`
	Scores        map[string]float64 `json:"scores" jsonschema:"Confidence of every activated constraint"`
	Suppressed    []SuppressedItem   `json:"suppressed" jsonschema:"Activated constraints held back by a composite"`
	Compositions  []CompositionItem  `json:"compositions" jsonschema:"Composites engaged by this interaction"`
	Excluded      []string           `json:"excluded" jsonschema:"Selected constraints dropped to fit the token budget"`
	PackVersion   string             `json:"pack_version" jsonschema:"Version of the constraint library used"`
}

// SuppressedItem explains why a matched constraint was held back.
type SuppressedItem struct {
	ID        string `json:"id"`
	Composite string `json:"composite"`
	Reason    string `json:"reason"`
}

// CompositionItem summarises one composite resolution.
type CompositionItem struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Eligible []string `json:"eligible"`
	NextStep string   `json:"next_step,omitempty"`
	Levels   []int    `json:"levels,omitempty"`
}

// CompleteInput defines the input for the nudge_complete tool.
type CompleteInput struct {
	Session   string `json:"session,omitempty" jsonschema:"Session id; blank uses the default session"`
	Composite string `json:"composite" jsonschema:"Id of the composite constraint"`
	Component string `json:"component,omitempty" jsonschema:"Component finished (sequential and parallel composites)"`
	Level     *int   `json:"level,omitempty" jsonschema:"Hierarchy level or layer finished (or unlocked)"`
	Unlock    bool   `json:"unlock,omitempty" jsonschema:"Unlock the level of a progressive composite instead of completing it"`
}

// CompleteOutput defines the output for the nudge_complete tool.
type CompleteOutput struct {
	Session             string   `json:"session"`
	Composite           string   `json:"composite"`
	Type                string   `json:"type"`
	CompletedComponents []string `json:"completed_components" jsonschema:"Components signalled complete so far"`
	CompletedLevels     []int    `json:"completed_levels" jsonschema:"Levels signalled complete so far"`
	UnlockedLevels      []int    `json:"unlocked_levels" jsonschema:"Levels explicitly unlocked so far"`
	NextStep            string   `json:"next_step,omitempty" jsonschema:"Open sequential step"`
	NextLevel           *int     `json:"next_level,omitempty" jsonschema:"Lowest open level"`
	AllCompleted        bool     `json:"all_completed" jsonschema:"Whether every step or level is complete"`
}

// ExplainInput defines the input for the nudge_explain tool.
type ExplainInput struct {
	ID         string          `json:"id" jsonschema:"Constraint id to explain"`
	Prompt     string          `json:"prompt,omitempty" jsonschema:"Free text of the current request or tool call; tokenised into keywords"`
	Keywords   []string        `json:"keywords,omitempty" jsonschema:"Extra keywords taken verbatim"`
	File       string          `json:"file,omitempty" jsonschema:"File being touched (absolute or relative to the project root)"`
	Patterns   []string        `json:"patterns,omitempty" jsonschema:"Declared activity patterns such as testing or refactoring"`
	Categories []CategoryInput `json:"categories,omitempty" jsonschema:"User-defined category/value pairs"`
}

func (in ExplainInput) contextArgs() contextArgs {
	return contextArgs{prompt: in.Prompt, keywords: in.Keywords, file: in.File, patterns: in.Patterns, categories: in.Categories}
}

// ExplainOutput defines the output for the nudge_explain tool.
type ExplainOutput struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Activated    bool            `json:"activated"`
	Reason       string          `json:"reason"`
	Score        float64         `json:"score"`
	BaseScore    float64         `json:"base_score"`
	Threshold    float64         `json:"threshold"`
	Dimensions   []DimensionItem `json:"dimensions"`
	Boosts       []string        `json:"boosts"`
	VetoedBy     string          `json:"vetoed_by,omitempty"`
	ReferencedBy []string        `json:"referenced_by" jsonschema:"Composites that list this constraint as a component"`
	Components   []string        `json:"components" jsonschema:"Components when the constraint is a composite"`
}

// DimensionItem is the match result of one trigger dimension.
type DimensionItem struct {
	Dimension string   `json:"dimension"`
	Fraction  float64  `json:"fraction"`
	Matched   []string `json:"matched"`
	Declared  int      `json:"declared"`
}

// ListInput defines the input for the nudge_list tool.
type ListInput struct {
	Category string `json:"category,omitempty" jsonschema:"Only constraints whose trigger matches this category"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum constraints to return; zero returns all"`
}

// ListOutput defines the output for the nudge_list tool.
type ListOutput struct {
	Constraints []ConstraintListItem `json:"constraints"`
	Count       int                  `json:"count" jsonschema:"Number of constraints returned"`
	Total       int                  `json:"total" jsonschema:"Number of constraints in the library"`
	PackVersion string               `json:"pack_version"`
}

// ConstraintListItem provides a list view of a constraint.
type ConstraintListItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Priority  float64  `json:"priority"`
	Kind      string   `json:"kind" jsonschema:"atomic or the composition type"`
	Keywords  []string `json:"keywords"`
	Threshold float64  `json:"threshold"`
}

// CheckRemovalInput defines the input for the nudge_check_removal tool.
type CheckRemovalInput struct {
	ID string `json:"id" jsonschema:"Constraint id to check"`
}

// CheckRemovalOutput defines the output for the nudge_check_removal tool.
type CheckRemovalOutput struct {
	ID           string   `json:"id"`
	Removable    bool     `json:"removable"`
	ReferencedBy []string `json:"referenced_by" jsonschema:"Composites that block the removal"`
}

// StatsInput defines the input for the nudge_stats tool.
type StatsInput struct {
	Top int `json:"top,omitempty" jsonschema:"How many of the most injected constraints to list; zero means 5"`
}

// StatsOutput defines the output for the nudge_stats tool.
type StatsOutput struct {
	PackVersion     string             `json:"pack_version"`
	PackConstraints int                `json:"pack_constraints"`
	Cadence         int                `json:"cadence"`
	TopK            int                `json:"top_k"`
	Sessions        []SessionItem      `json:"sessions"`
	Selections      map[string]float64 `json:"selections" jsonschema:"Selections by outcome"`
	TopInjected     []string           `json:"top_injected" jsonschema:"Most injected constraints"`
	Suppressed      map[string]float64 `json:"suppressed" jsonschema:"Held-back constraints by reason"`
	Reloads         map[string]float64 `json:"reloads" jsonschema:"Library reloads by status"`
	ToolCalls       map[string]float64 `json:"tool_calls" jsonschema:"Tool calls keyed tool/status"`
	MeanSelectionMs float64            `json:"mean_selection_ms"`
}

// SessionItem summarises one session.
type SessionItem struct {
	ID            string `json:"id"`
	Interaction   int    `json:"interaction"`
	NextInjection int    `json:"next_injection"`
}
