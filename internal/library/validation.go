package library

import (
	"sort"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
	"github.com/nvandessel/nudge/internal/trigger"
)

// validate checks a candidate constraint set for:
//   - per-constraint invariants (blank id, priority and threshold bounds,
//     composition shape, malformed glob patterns)
//   - duplicate ids across atomic and composite constraints
//   - dangling composite references
//   - cycles in the composite -> component graph
//
// The first problem found is returned.
func validate(cs []models.Constraint) error {
	ids := make(map[models.ConstraintID]struct{}, len(cs))
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return err
		}
		if err := trigger.ValidatePatterns(c.ID, c.Trigger); err != nil {
			return err
		}
		if _, dup := ids[c.ID]; dup {
			return &models.ValidationError{ConstraintID: c.ID, Field: "id", Issue: "duplicate"}
		}
		ids[c.ID] = struct{}{}
	}

	graph := make(map[models.ConstraintID][]models.ConstraintID)
	for _, c := range cs {
		if !c.IsComposite() {
			continue
		}
		for _, ref := range c.Composition.Components {
			if _, ok := ids[ref.ID]; !ok {
				return &models.ValidationError{
					ConstraintID: c.ID,
					Field:        "components",
					Issue:        "dangling",
					Detail:       string(ref.ID),
				}
			}
			graph[c.ID] = append(graph[c.ID], ref.ID)
		}
	}

	if cycle := detectCycle(graph); len(cycle) > 0 {
		parts := make([]string, len(cycle))
		for i, id := range cycle {
			parts[i] = string(id)
		}
		return &models.ValidationError{
			ConstraintID: cycle[0],
			Field:        "components",
			Issue:        "cycle",
			Detail:       strings.Join(parts, " -> "),
		}
	}
	return nil
}

// detectCycle finds one cycle in a directed graph using DFS with colour
// marking and returns it as a closed path (first id repeated at the end),
// or nil. Nodes are visited in sorted order so the reported cycle is stable.
func detectCycle(graph map[models.ConstraintID][]models.ConstraintID) []models.ConstraintID {
	const (
		white = iota // unvisited
		gray         // on the current DFS path
		black        // done
	)
	color := make(map[models.ConstraintID]int)
	var stack []models.ConstraintID
	var found []models.ConstraintID

	var dfs func(node models.ConstraintID) bool
	dfs = func(node models.ConstraintID) bool {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range graph[node] {
			switch color[next] {
			case gray:
				// Back edge: the cycle is the stack suffix starting at next.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						found = append(append([]models.ConstraintID(nil), stack[i:]...), next)
						return true
					}
				}
			case white:
				if dfs(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
		return false
	}

	nodes := make([]models.ConstraintID, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	for _, n := range nodes {
		if color[n] == white && dfs(n) {
			return found
		}
	}
	return nil
}
