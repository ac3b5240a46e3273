package assembly

import (
	"fmt"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
)

// Catalog renders a library listing as a markdown table, one row per
// constraint in the order given.
func Catalog(version string, constraints []models.Constraint) string {
	var sb strings.Builder
	sb.WriteString("# Constraint Library\n\n")
	if version != "" {
		fmt.Fprintf(&sb, "Version %s, %d constraints.\n\n", version, len(constraints))
	} else {
		fmt.Fprintf(&sb, "%d constraints.\n\n", len(constraints))
	}
	if len(constraints) == 0 {
		sb.WriteString("No constraints loaded.\n")
		return sb.String()
	}

	sb.WriteString("| ID | Title | Priority | Kind |\n")
	sb.WriteString("|----|-------|----------|------|\n")
	for _, c := range constraints {
		fmt.Fprintf(&sb, "| %s | %s | %.2f | %s |\n", escapeCell(string(c.ID)), escapeCell(c.Title), c.Priority, kind(c))
	}
	return sb.String()
}

func kind(c models.Constraint) string {
	if !c.IsComposite() {
		return "atomic"
	}
	return fmt.Sprintf("%s (%d components)", c.Composition.Type, len(c.Composition.Components))
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
