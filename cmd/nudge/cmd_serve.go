package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvandessel/nudge/internal/analyzer"
	"github.com/nvandessel/nudge/internal/assembly"
	"github.com/nvandessel/nudge/internal/library"
	"github.com/nvandessel/nudge/internal/loader"
	"github.com/nvandessel/nudge/internal/logging"
	"github.com/nvandessel/nudge/internal/mcp"
	"github.com/nvandessel/nudge/internal/metrics"
	"github.com/nvandessel/nudge/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run nudge as an MCP server on stdin/stdout.

The agent calls nudge_select once per interaction; on injection points the
result carries the process reminders to add to its context. Composite
progress is signalled with nudge_complete.

With watching enabled the library file is reloaded when it changes. A
document that fails to load is logged and the previous library stays in
use.

Example MCP client entry:
  {"command": "nudge", "args": ["serve", "--library", "./nudge.yaml"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("watch") {
				cfg.Library.Watch, _ = cmd.Flags().GetBool("watch")
			}
			formatFlag, _ := cmd.Flags().GetString("format")
			format, err := assembly.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			maxTokens, _ := cmd.Flags().GetInt("max-tokens")

			// stdout carries the protocol; logs go to stderr.
			logger := logging.NewLogger(cfg.Logging.Level, os.Stderr).With("instance", session.NewSessionID())

			pack, err := loadPack(cfg)
			if err != nil {
				return err
			}
			sel, err := cfg.BuildSelector()
			if err != nil {
				return err
			}

			decisions := logging.NewDecisionLogger(cfg.Logging.Dir, cfg.Logging.Level)
			defer decisions.Close()

			m := metrics.New()
			holder := library.NewHolder(pack)
			srv, err := mcp.NewServer(&mcp.Config{
				Name:        "nudge",
				Version:     version,
				Root:        projectRoot(cmd),
				Holder:      holder,
				Selector:    sel,
				TopK:        cfg.Engine.TopK,
				Environment: analyzer.DetectEnvironment(),
				Format:      format,
				MaxTokens:   maxTokens,
				Logger:      logger,
				Decisions:   decisions,
				Metrics:     m,
			})
			if err != nil {
				return fmt.Errorf("creating MCP server: %w", err)
			}

			var watcher *loader.Watcher
			if cfg.Library.Watch {
				watcher, err = loader.NewWatcher(holder, loader.WatchConfig{
					Path:         cfg.Library.Path,
					Debounce:     cfg.Debounce(),
					ParseOptions: parseOptions(cfg),
					Logger:       logger,
					OnReload: func(p *library.Pack, err error) {
						size := 0
						if p != nil {
							size = p.Len()
						}
						m.RecordReload(size, err)
					},
				})
				if err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("nudge MCP server starting",
				"version", version,
				"library_version", pack.Version(),
				"constraints", pack.Len(),
				"cadence", cfg.Engine.Cadence,
				"watch", cfg.Library.Watch)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// The client going away ends the session, and the watcher with it.
				defer stop()
				if err := srv.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("MCP server: %w", err)
				}
				return nil
			})

			if watcher != nil {
				g.Go(func() error { return watcher.Run(gctx) })
			}

			err = g.Wait()
			logger.Info("nudge MCP server stopped")
			return err
		},
	}

	cmd.Flags().Bool("watch", true, "Reload the library when its file changes (default from config)")
	cmd.Flags().String("format", "markdown", "Rendering of injected reminders: markdown, xml or plain")
	cmd.Flags().Int("max-tokens", 0, "Token budget for injected reminders (0 = unlimited)")

	return cmd
}
