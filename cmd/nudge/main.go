package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nudge",
		Short: "Process reminders for AI coding agents",
		Long: `nudge injects software engineering process reminders into an AI coding
agent's context at a configurable cadence.

Constraints are loaded from a YAML library, matched against the current
interaction (prompt, file, activity) and composed into ordered workflows
such as test-first development or layered code review.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.nudge/config.yaml)")
	rootCmd.PersistentFlags().String("library", "", "Constraint library file (overrides config)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newValidateCmd(),
		newSelectCmd(),
		newExplainCmd(),
		newScheduleCmd(),
	)
	return rootCmd
}
