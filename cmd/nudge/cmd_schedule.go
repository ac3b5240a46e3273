package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/nudge/internal/scheduler"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "List the interactions that inject reminders",
		Long: `Print the injection points of the cadence scheduler over a range of
interactions. The first interaction always injects; after that every
cadence-th interaction does.

Examples:
  nudge schedule                       # configured cadence, interactions 1-20
  nudge schedule --cadence 5 --to 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			from, _ := cmd.Flags().GetInt("from")
			to, _ := cmd.Flags().GetInt("to")
			cadence, _ := cmd.Flags().GetInt("cadence")

			if cadence == 0 {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				cadence = cfg.Engine.Cadence
			}
			if from < 1 || to < from {
				return fmt.Errorf("invalid range %d-%d: want 1 <= from <= to", from, to)
			}

			sched, err := scheduler.New(cadence)
			if err != nil {
				return err
			}
			points := sched.InjectionPoints(from, to)
			next := sched.NextInjection(to)

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"cadence": cadence,
					"from":    from,
					"to":      to,
					"points":  points,
					"next":    next,
				})
			}

			strs := make([]string, len(points))
			for i, p := range points {
				strs[i] = strconv.Itoa(p)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cadence %d, interactions %d-%d: %s\n", cadence, from, to, strings.Join(strs, ", "))
			fmt.Fprintf(out, "Next injection after %d: %d\n", to, next)
			return nil
		},
	}

	cmd.Flags().Int("cadence", 0, "Interaction interval (default from config)")
	cmd.Flags().Int("from", 1, "First interaction")
	cmd.Flags().Int("to", 20, "Last interaction")

	return cmd
}
