package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/nudge/internal/analyzer"
	"github.com/nvandessel/nudge/internal/config"
	"github.com/nvandessel/nudge/internal/library"
	"github.com/nvandessel/nudge/internal/loader"
	"github.com/nvandessel/nudge/internal/models"
	"github.com/spf13/cobra"
)

// loadConfig resolves configuration from --config (or the default
// location), then applies --library.
func loadConfig(cmd *cobra.Command) (*config.NudgeConfig, error) {
	configPath, _ := cmd.Flags().GetString("config")
	libraryPath, _ := cmd.Flags().GetString("library")

	var (
		cfg *config.NudgeConfig
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if libraryPath != "" {
		cfg.Library.Path = libraryPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadPack loads the configured library.
func loadPack(cfg *config.NudgeConfig) (*library.Pack, error) {
	if cfg.Library.Path == "" {
		return nil, fmt.Errorf("no constraint library configured; pass --library or set library.path")
	}
	pack, err := loader.LoadFile(cfg.Library.Path, parseOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("loading library: %w", err)
	}
	return pack, nil
}

func parseOptions(cfg *config.NudgeConfig) []loader.Option {
	return []loader.Option{loader.WithDefaultThreshold(cfg.Engine.DefaultThreshold)}
}

// projectRoot returns --root as an absolute path.
func projectRoot(cmd *cobra.Command) string {
	root, _ := cmd.Flags().GetString("root")
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// addContextFlags registers the flags describing one interaction.
func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().String("prompt", "", "Free text of the interaction (prompt, task, commit message)")
	cmd.Flags().StringSlice("keyword", nil, "Extra keywords (repeatable)")
	cmd.Flags().String("file", "", "File being touched")
	cmd.Flags().StringSlice("pattern", nil, "Declared activity patterns, e.g. testing (repeatable)")
	cmd.Flags().StringSlice("category", nil, "User-defined category as category=value (repeatable)")
	cmd.Flags().String("env", "", "Environment category (default: detected)")
}

// buildContext turns the context flags into a trigger context.
func buildContext(cmd *cobra.Command, interaction int) (*models.TriggerContext, error) {
	prompt, _ := cmd.Flags().GetString("prompt")
	keywords, _ := cmd.Flags().GetStringSlice("keyword")
	file, _ := cmd.Flags().GetString("file")
	patterns, _ := cmd.Flags().GetStringSlice("pattern")
	categories, _ := cmd.Flags().GetStringSlice("category")
	env, _ := cmd.Flags().GetString("env")
	if env == "" {
		env = analyzer.DetectEnvironment()
	}

	b := analyzer.NewContextBuilder().
		WithText(prompt).
		WithKeywords(keywords...).
		WithFile(file).
		WithRepoRoot(projectRoot(cmd)).
		WithPatterns(patterns...).
		WithEnvironment(env).
		WithInteraction(interaction)
	for _, c := range categories {
		key, value, ok := strings.Cut(c, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --category %q: want category=value", c)
		}
		b.WithCategory(key, value, 1)
	}
	return b.Build()
}

// parseProgress turns --done composite=component and --done-level
// composite=level flags into composition progress.
func parseProgress(done, doneLevels []string) (models.CompositionProgress, error) {
	progress := models.CompositionProgress{}
	entry := func(id models.ConstraintID) models.CompositeProgress {
		p, ok := progress[id]
		if !ok {
			p = models.CompositeProgress{
				CompletedComponents: map[models.ConstraintID]bool{},
				CompletedLevels:     map[int]bool{},
				UnlockedLevels:      map[int]bool{},
			}
		}
		return p
	}

	for _, d := range done {
		composite, component, ok := strings.Cut(d, "=")
		if !ok || composite == "" || component == "" {
			return nil, fmt.Errorf("invalid --done %q: want composite=component", d)
		}
		p := entry(models.ConstraintID(composite))
		p.CompletedComponents[models.ConstraintID(component)] = true
		progress[models.ConstraintID(composite)] = p
	}
	for _, d := range doneLevels {
		composite, level, ok := strings.Cut(d, "=")
		n, err := strconv.Atoi(level)
		if !ok || composite == "" || err != nil {
			return nil, fmt.Errorf("invalid --done-level %q: want composite=level", d)
		}
		p := entry(models.ConstraintID(composite))
		p.CompletedLevels[n] = true
		progress[models.ConstraintID(composite)] = p
	}
	return progress, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
