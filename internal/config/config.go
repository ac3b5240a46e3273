// Package config provides unified configuration loading for nudge.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/nudge/internal/constants"
	"github.com/nvandessel/nudge/internal/trigger"
	"gopkg.in/yaml.v3"
)

// NudgeConfig contains all nudge configuration settings.
type NudgeConfig struct {
	// Engine tunes scoring, boosting and scheduling.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Library locates the constraint pack and controls reloading.
	Library LibraryConfig `json:"library" yaml:"library"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// EngineConfig configures the trigger engine and the scheduler.
type EngineConfig struct {
	// Cadence is the interaction interval between injections.
	Cadence int `json:"cadence" yaml:"cadence"`

	// TopK caps how many constraints one injection surfaces.
	TopK int `json:"top_k" yaml:"top_k"`

	// DefaultThreshold is applied to triggers that declare no
	// confidence_threshold.
	DefaultThreshold float64 `json:"default_threshold" yaml:"default_threshold"`

	// Weights are the relative weights of the match dimensions.
	Weights trigger.Weights `json:"weights" yaml:"weights"`

	// Boosts are the domain indicator boosts, applied in order. When the
	// key is absent the shipped rules are used; an explicit empty list
	// disables boosting.
	Boosts []trigger.BoostRule `json:"boosts" yaml:"boosts"`
}

// LibraryConfig configures where the constraint pack comes from.
type LibraryConfig struct {
	// Path is the constraint document. Supports ${VAR} syntax and a leading ~.
	Path string `json:"path" yaml:"path"`

	// Watch reloads the pack when the file changes (serve only).
	Watch bool `json:"watch" yaml:"watch"`

	// DebounceMillis collapses bursts of file events into one reload.
	DebounceMillis int `json:"debounce_millis" yaml:"debounce_millis"`
}

// LoggingConfig configures nudge's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to ~/.nudge/decisions.jsonl.
	// "trace" additionally records the full score breakdown of each decision.
	Level string `json:"level" yaml:"level"`

	// Dir is where decisions.jsonl is written. Defaults to ~/.nudge.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Default returns a NudgeConfig with sensible defaults.
func Default() *NudgeConfig {
	return &NudgeConfig{
		Engine: EngineConfig{
			Cadence:          constants.DefaultCadence,
			TopK:             constants.DefaultTopK,
			DefaultThreshold: constants.DefaultConfidenceThreshold,
			Weights:          trigger.DefaultWeights(),
			Boosts:           trigger.DefaultBoostRules(),
		},
		Library: LibraryConfig{
			Path:           defaultLibraryPath(),
			Watch:          true,
			DebounceMillis: constants.DefaultReloadDebounceMillis,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   defaultDir(),
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.nudge/config.yaml -> environment variables
func Load() (*NudgeConfig, error) {
	config := Default()

	// Try to load from default config file
	if dir := defaultDir(); dir != "" {
		configPath := filepath.Join(dir, constants.ConfigFileName)
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*NudgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	// A present boosts key replaces the defaults rather than merging into them.
	config.Engine.Boosts = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if !hasBoostsKey(data) {
		config.Engine.Boosts = trigger.DefaultBoostRules()
	}

	config.Library.Path = expandPath(config.Library.Path)
	config.Logging.Dir = expandPath(config.Logging.Dir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *NudgeConfig) Validate() error {
	if c.Engine.Cadence <= 0 {
		return fmt.Errorf("cadence must be positive, got %d", c.Engine.Cadence)
	}

	if c.Engine.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.Engine.TopK)
	}

	if c.Engine.DefaultThreshold < 0 || c.Engine.DefaultThreshold > 1 {
		return fmt.Errorf("default_threshold must be between 0 and 1, got %f", c.Engine.DefaultThreshold)
	}

	w := c.Engine.Weights
	if w.Keyword < 0 || w.FilePattern < 0 || w.ContextPattern < 0 {
		return fmt.Errorf("weights must be non-negative, got %+v", w)
	}
	if w.Keyword+w.FilePattern+w.ContextPattern == 0 {
		return fmt.Errorf("at least one weight must be positive")
	}

	for _, r := range c.Engine.Boosts {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	if c.Library.DebounceMillis < 0 {
		return fmt.Errorf("debounce_millis must be non-negative, got %d", c.Library.DebounceMillis)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *NudgeConfig) {
	if v := os.Getenv("NUDGE_CADENCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Engine.Cadence = n
		}
	}

	if v := os.Getenv("NUDGE_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Engine.TopK = n
		}
	}

	if v := os.Getenv("NUDGE_LIBRARY"); v != "" {
		config.Library.Path = expandPath(v)
	}

	if v := os.Getenv("NUDGE_WATCH"); v != "" {
		config.Library.Watch = v == "true" || v == "1"
	}

	if v := os.Getenv("NUDGE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// hasBoostsKey reports whether the document sets engine.boosts at all.
func hasBoostsKey(data []byte) bool {
	var raw struct {
		Engine struct {
			Boosts *yaml.Node `yaml:"boosts"`
		} `yaml:"engine"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false
	}
	return raw.Engine.Boosts != nil
}

// expandPath expands ${VAR} patterns and a leading ~ in a path.
func expandPath(s string) string {
	s = expandEnvVars(s)
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	return s
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, constants.ConfigDirName)
}

func defaultLibraryPath() string {
	dir := defaultDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, constants.LibraryFileName)
}
