// Package sanitize cleans constraint text loaded from a pack before it is
// injected into an agent's prompt. A pack is user-editable, so reminder
// text is treated as untrusted: control characters, XML/HTML tags and
// markdown structure that could impersonate prompt sections are stripped
// while the wording is kept.
package sanitize

import (
	"regexp"
	"strings"
)

const (
	// MaxReminderLength bounds one reminder line.
	MaxReminderLength = 500

	// MaxTitleLength bounds a constraint title.
	MaxTitleLength = 120
)

var (
	// reXMLTag matches XML/HTML tags, with attributes or self-closing, and
	// processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reMarkdownHeading matches a heading marker at the start of a line.
	reMarkdownHeading = regexp.MustCompile(`(?m)^#{1,6}\s+`)

	// reHorizontalRule matches a whole-line ---, *** or ___ rule.
	reHorizontalRule = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)

	reTripleBacktick    = regexp.MustCompile("```+")
	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)
	reSpaces            = regexp.MustCompile(`[ \t]+`)
)

// Reminder sanitizes one reminder line:
//  1. Strip ASCII control characters (except \n, \t)
//  2. Strip XML/HTML tags
//  3. Turn markdown headings into list markers
//  4. Drop horizontal rules
//  5. Collapse code fences to a single backtick
//  6. Collapse 3+ newlines to 2
//  7. Trim, then truncate to MaxReminderLength runes
func Reminder(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input, true)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reMarkdownHeading.ReplaceAllString(s, "- ")
	s = reHorizontalRule.ReplaceAllString(s, "")
	s = reTripleBacktick.ReplaceAllString(s, "`")
	s = reExcessiveNewlines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	return truncate(s, MaxReminderLength)
}

// Reminders sanitizes every line and drops the ones left empty.
func Reminders(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if s := Reminder(r); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Title sanitizes a constraint title to a single plain line.
func Title(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input, false)
	s = reXMLTag.ReplaceAllString(s, "")
	s = strings.TrimLeft(strings.TrimSpace(s), "# ")
	s = reSpaces.ReplaceAllString(s, " ")

	return truncate(strings.TrimSpace(s), MaxTitleLength)
}

// stripControlChars removes ASCII control characters. With keepLayout,
// newline and tab survive; otherwise they become spaces.
func stripControlChars(s string, keepLayout bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			if keepLayout {
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
