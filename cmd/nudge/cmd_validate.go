package main

import (
	"fmt"

	"github.com/nvandessel/nudge/internal/loader"
	"github.com/nvandessel/nudge/internal/pathutil"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a constraint library",
		Long: `Validate a constraint library without serving it.

This command checks for:
  - Blank or duplicate constraint ids
  - Priorities and thresholds outside [0, 1]
  - Composites referencing unknown constraints, or themselves
  - Cycles between composites
  - Undeclared hierarchy levels and missing sequence orders
  - Malformed glob patterns

Examples:
  nudge validate                 # Validate the configured library
  nudge validate ./nudge.yaml    # Validate a specific file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Library.Path = args[0]
			}
			if cfg.Library.Path == "" {
				return fmt.Errorf("no constraint library configured; pass a file or --library")
			}

			pack, err := loader.LoadFile(cfg.Library.Path, parseOptions(cfg)...)
			if err != nil {
				if jsonOut {
					writeJSON(cmd.OutOrStdout(), map[string]any{
						"valid": false,
						"file":  pathutil.RedactPath(cfg.Library.Path),
						"error": err.Error(),
					})
				}
				return err
			}

			composites := len(pack.Composites())
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"valid":       true,
					"file":        pathutil.RedactPath(cfg.Library.Path),
					"version":     pack.Version(),
					"constraints": pack.Len(),
					"composites":  composites,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Library is valid: %d constraints (%d composite)", pack.Len(), composites)
			if pack.Version() != "" {
				fmt.Fprintf(cmd.OutOrStdout(), ", version %s", pack.Version())
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	return cmd
}
