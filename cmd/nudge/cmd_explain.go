package main

import (
	"fmt"
	"strings"

	"github.com/nvandessel/nudge/internal/models"
	"github.com/spf13/cobra"
)

func newExplainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <constraint-id>",
		Short: "Explain why a constraint does or does not activate",
		Long: `Score one constraint against an interaction context and print the
breakdown: which keywords and patterns matched, the weighted score, any
boosts or anti-pattern veto, and the threshold it was compared against.

Example:
  nudge explain tdd.test-first --prompt "add a failing test" --file parser_test.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			pack, err := loadPack(cfg)
			if err != nil {
				return err
			}
			engine, err := cfg.BuildEngine()
			if err != nil {
				return err
			}

			c, ok := pack.Get(models.ConstraintID(args[0]))
			if !ok {
				return fmt.Errorf("unknown constraint %q", args[0])
			}
			tctx, err := buildContext(cmd, 0)
			if err != nil {
				return err
			}

			ex := engine.Explain(c, tctx)
			refs := pack.ReferencedBy(c.ID)

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"explanation":   ex,
					"referenced_by": refs,
				})
			}

			out := cmd.OutOrStdout()
			status := "inactive"
			if ex.Activated {
				status = "ACTIVE"
			}
			fmt.Fprintf(out, "%s: %s\n", c.ID, status)
			fmt.Fprintf(out, "  %s\n", ex.Reason)
			fmt.Fprintf(out, "  score %.2f (base %.2f, threshold %.2f)\n", ex.Score, ex.BaseScore, ex.Threshold)
			for _, d := range ex.Dimensions {
				fmt.Fprintf(out, "  %-17s %.2f  matched %d/%d", d.Dimension, d.Fraction, len(d.Matched), d.Declared)
				if len(d.Matched) > 0 {
					fmt.Fprintf(out, " [%s]", strings.Join(d.Matched, ", "))
				}
				fmt.Fprintln(out)
			}
			if len(ex.Boosts) > 0 {
				fmt.Fprintf(out, "  boosted by %s\n", strings.Join(ex.Boosts, ", "))
			}
			if len(refs) > 0 {
				ids := make([]string, len(refs))
				for i, id := range refs {
					ids[i] = string(id)
				}
				fmt.Fprintf(out, "  component of %s\n", strings.Join(ids, ", "))
			}
			return nil
		},
	}

	addContextFlags(cmd)

	return cmd
}
