// Package assembly renders the reminders chosen by the selector into the
// text that is injected into the agent's context.
package assembly

import (
	"fmt"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
)

// Format specifies the output format for compiled prompts
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatXML      Format = "xml"
	FormatPlain    Format = "plain"
)

// ParseFormat maps a case-insensitive name to a Format. Blank means
// markdown.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatXML:
		return FormatXML, nil
	case FormatPlain:
		return FormatPlain, nil
	default:
		return "", &models.ArgumentError{Name: "format", Reason: fmt.Sprintf("unknown format %q", s)}
	}
}

// CompiledPrompt is the rendered injection block.
type CompiledPrompt struct {
	// The formatted text ready for injection
	Text string `json:"text"`

	// One section per included constraint, in selection order
	Sections []PromptSection `json:"sections"`

	TotalTokens int    `json:"total_tokens"`
	Format      Format `json:"format"`

	IncludedConstraints []string `json:"included_constraints"`

	// Constraints dropped to honour the token budget
	ExcludedConstraints []string `json:"excluded_constraints,omitempty"`
}

// PromptSection is the rendering of one constraint.
type PromptSection struct {
	ConstraintID string `json:"constraint_id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	TokenCount   int    `json:"token_count"`
}

// Compiler renders reminders. The zero budget means unlimited.
type Compiler struct {
	format    Format
	maxTokens int
}

// NewCompiler creates a markdown compiler without a token budget.
func NewCompiler() *Compiler {
	return &Compiler{format: FormatMarkdown}
}

// WithFormat sets the output format
func (c *Compiler) WithFormat(format Format) *Compiler {
	c.format = format
	return c
}

// WithMaxTokens caps the estimated size of the rendered block.
func (c *Compiler) WithMaxTokens(n int) *Compiler {
	c.maxTokens = n
	return c
}

// Compile renders reminders in the order given. The selector already
// ranks them, so the compiler never reorders.
func (c *Compiler) Compile(reminders []models.Reminder) *CompiledPrompt {
	out := &CompiledPrompt{
		Sections:            []PromptSection{},
		Format:              c.format,
		IncludedConstraints: []string{},
	}
	if len(reminders) == 0 {
		return out
	}

	fit := NewOptimizer(c.maxTokens).Optimize(reminders)
	for _, r := range fit.Excluded {
		out.ExcludedConstraints = append(out.ExcludedConstraints, string(r.ID))
	}

	for _, r := range fit.Included {
		content := c.formatReminder(r)
		out.Sections = append(out.Sections, PromptSection{
			ConstraintID: string(r.ID),
			Title:        title(r),
			Content:      content,
			TokenCount:   estimateTokens(content),
		})
		out.IncludedConstraints = append(out.IncludedConstraints, string(r.ID))
	}

	out.Text = c.assembleText(out.Sections)
	out.TotalTokens = estimateTokens(out.Text)
	return out
}

func (c *Compiler) formatReminder(r models.Reminder) string {
	switch c.format {
	case FormatXML:
		return formatReminderXML(r)
	case FormatPlain:
		return formatReminderPlain(r)
	default:
		return formatReminderMarkdown(r)
	}
}

func formatReminderMarkdown(r models.Reminder) string {
	lines := []string{"### " + title(r)}
	for _, text := range r.Reminders {
		lines = append(lines, "- "+text)
	}
	return strings.Join(lines, "\n")
}

func formatReminderXML(r models.Reminder) string {
	lines := []string{fmt.Sprintf("<reminder id=\"%s\" title=\"%s\">", escapeXML(string(r.ID)), escapeXML(title(r)))}
	for _, text := range r.Reminders {
		lines = append(lines, "<item>"+escapeXML(text)+"</item>")
	}
	lines = append(lines, "</reminder>")
	return strings.Join(lines, "\n")
}

func formatReminderPlain(r models.Reminder) string {
	lines := []string{title(r) + ":"}
	for _, text := range r.Reminders {
		lines = append(lines, "  "+text)
	}
	return strings.Join(lines, "\n")
}

// escapeXML escapes XML special characters in content strings.
func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;") // Must be first!
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

// assembleText combines sections into final prompt text
func (c *Compiler) assembleText(sections []PromptSection) string {
	if len(sections) == 0 {
		return ""
	}

	var parts []string
	switch c.format {
	case FormatXML:
		parts = append(parts, "<process-reminders>")
		for _, s := range sections {
			parts = append(parts, s.Content)
		}
		parts = append(parts, "</process-reminders>")

	case FormatPlain:
		for i, s := range sections {
			if i > 0 {
				parts = append(parts, "")
			}
			parts = append(parts, s.Content)
		}

	default: // FormatMarkdown
		parts = append(parts, "## Process Reminders", "")
		for _, s := range sections {
			parts = append(parts, s.Content, "")
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func title(r models.Reminder) string {
	if r.Title != "" {
		return r.Title
	}
	return string(r.ID)
}

// estimateTokens provides a rough token count estimate
// Uses the common heuristic of ~4 characters per token
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
