package main

import (
	"fmt"
	"sort"

	"github.com/nvandessel/nudge/internal/assembly"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/spf13/cobra"
)

// selectResult is the JSON shape of `nudge select`.
type selectResult struct {
	Interaction   int                `json:"interaction"`
	Inject        bool               `json:"inject"`
	NextInjection int                `json:"next_injection"`
	Reminders     []models.Reminder  `json:"reminders"`
	Text          string             `json:"text"`
	Scores        map[string]float64 `json:"scores,omitempty"`
	Suppressed    []string           `json:"suppressed,omitempty"`
	Excluded      []string           `json:"excluded,omitempty"`
}

func newSelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Show the reminders one interaction would inject",
		Long: `Run a single selection against the library and print the reminders an
agent would receive. Nothing is recorded; composite progress is passed in
with --done and --done-level.

Examples:
  nudge select --prompt "add a failing test" --file parser_test.go
  nudge select --prompt "refactor" --done tdd.cycle=tdd.test-first
  nudge select --prompt "review" --interaction 4 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			interaction, _ := cmd.Flags().GetInt("interaction")
			topK, _ := cmd.Flags().GetInt("top-k")
			formatFlag, _ := cmd.Flags().GetString("format")
			maxTokens, _ := cmd.Flags().GetInt("max-tokens")
			done, _ := cmd.Flags().GetStringSlice("done")
			doneLevels, _ := cmd.Flags().GetStringSlice("done-level")

			if interaction < 1 {
				return fmt.Errorf("--interaction must be >= 1, got %d", interaction)
			}
			format, err := assembly.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			progress, err := parseProgress(done, doneLevels)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = cfg.Engine.TopK
			}
			pack, err := loadPack(cfg)
			if err != nil {
				return err
			}
			sel, err := cfg.BuildSelector()
			if err != nil {
				return err
			}
			tctx, err := buildContext(cmd, interaction)
			if err != nil {
				return err
			}

			d, err := sel.Select(pack, tctx, progress, topK)
			if err != nil {
				return err
			}
			compiled := assembly.NewCompiler().WithFormat(format).WithMaxTokens(maxTokens).Compile(models.ToReminders(d.Constraints))

			included := make(map[string]bool, len(compiled.IncludedConstraints))
			for _, id := range compiled.IncludedConstraints {
				included[id] = true
			}
			res := selectResult{
				Interaction:   d.Interaction,
				Inject:        d.Inject,
				NextInjection: d.NextInjection,
				Reminders:     []models.Reminder{},
				Text:          compiled.Text,
				Excluded:      compiled.ExcludedConstraints,
			}
			for _, r := range models.ToReminders(d.Constraints) {
				if included[string(r.ID)] {
					res.Reminders = append(res.Reminders, r)
				}
			}
			if len(d.Scores) > 0 {
				res.Scores = make(map[string]float64, len(d.Scores))
				for id, s := range d.Scores {
					res.Scores[string(id)] = s
				}
			}
			for _, s := range d.Suppressed {
				res.Suppressed = append(res.Suppressed, fmt.Sprintf("%s (%s by %s)", s.ID, s.Reason, s.Composite))
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printSelection(cmd, res)
			return nil
		},
	}

	addContextFlags(cmd)
	cmd.Flags().Int("interaction", 1, "Interaction number (1-based)")
	cmd.Flags().Int("top-k", 0, "Maximum reminders to inject (default from config)")
	cmd.Flags().String("format", "markdown", "Output format: markdown, xml or plain")
	cmd.Flags().Int("max-tokens", 0, "Token budget for the reminders (0 = unlimited)")
	cmd.Flags().StringSlice("done", nil, "Completed composite step as composite=component (repeatable)")
	cmd.Flags().StringSlice("done-level", nil, "Completed composite level as composite=level (repeatable)")

	return cmd
}

func printSelection(cmd *cobra.Command, res selectResult) {
	out := cmd.OutOrStdout()
	if !res.Inject {
		fmt.Fprintf(out, "Interaction %d is not an injection point (next: %d)\n", res.Interaction, res.NextInjection)
		return
	}
	if res.Text == "" {
		fmt.Fprintf(out, "Interaction %d: no constraints activated\n", res.Interaction)
	} else {
		fmt.Fprintln(out, res.Text)
	}

	if len(res.Suppressed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Held back:")
		for _, s := range res.Suppressed {
			fmt.Fprintf(out, "  %s\n", s)
		}
	}
	if len(res.Excluded) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Over token budget: %v\n", res.Excluded)
	}
	if len(res.Scores) > 0 {
		ids := make([]string, 0, len(res.Scores))
		for id := range res.Scores {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Scores:")
		for _, id := range ids {
			fmt.Fprintf(out, "  %-30s %.2f\n", id, res.Scores[id])
		}
	}
}
