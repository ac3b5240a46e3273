package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/nudge/internal/trigger"
)

func TestDefault(t *testing.T) {
	config := Default()

	// Engine defaults
	if config.Engine.Cadence != 3 {
		t.Errorf("expected Cadence 3, got %d", config.Engine.Cadence)
	}
	if config.Engine.TopK != 5 {
		t.Errorf("expected TopK 5, got %d", config.Engine.TopK)
	}
	if config.Engine.DefaultThreshold != 0.5 {
		t.Errorf("expected DefaultThreshold 0.5, got %f", config.Engine.DefaultThreshold)
	}
	if config.Engine.Weights != trigger.DefaultWeights() {
		t.Errorf("expected default weights, got %+v", config.Engine.Weights)
	}
	if len(config.Engine.Boosts) != len(trigger.DefaultBoostRules()) {
		t.Errorf("expected %d default boost rules, got %d", len(trigger.DefaultBoostRules()), len(config.Engine.Boosts))
	}

	// Library defaults
	if !config.Library.Watch {
		t.Error("expected Library.Watch to be true by default")
	}
	if config.Library.DebounceMillis != 200 {
		t.Errorf("expected DebounceMillis 200, got %d", config.Library.DebounceMillis)
	}
	if config.Library.Path != "" && !strings.HasSuffix(config.Library.Path, filepath.Join(".nudge", "constraints.yaml")) {
		t.Errorf("unexpected default Library.Path %q", config.Library.Path)
	}

	// Logging defaults
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
engine:
  cadence: 4
  top_k: 2
  default_threshold: 0.6
  weights:
    keyword: 1
    file_pattern: 0
    context_pattern: 1
  boosts:
    - domain: tdd
      indicators: [test]
      factor: 1.5

library:
  path: /tmp/pack.yaml
  watch: false
  debounce_millis: 50
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Engine.Cadence != 4 {
		t.Errorf("expected Cadence 4, got %d", config.Engine.Cadence)
	}
	if config.Engine.TopK != 2 {
		t.Errorf("expected TopK 2, got %d", config.Engine.TopK)
	}
	if config.Engine.DefaultThreshold != 0.6 {
		t.Errorf("expected DefaultThreshold 0.6, got %f", config.Engine.DefaultThreshold)
	}
	want := trigger.Weights{Keyword: 1, FilePattern: 0, ContextPattern: 1}
	if config.Engine.Weights != want {
		t.Errorf("expected weights %+v, got %+v", want, config.Engine.Weights)
	}
	if len(config.Engine.Boosts) != 1 || config.Engine.Boosts[0].Domain != "tdd" || config.Engine.Boosts[0].Factor != 1.5 {
		t.Errorf("expected a single tdd boost, got %+v", config.Engine.Boosts)
	}
	if config.Library.Path != "/tmp/pack.yaml" {
		t.Errorf("expected Library.Path '/tmp/pack.yaml', got '%s'", config.Library.Path)
	}
	if config.Library.Watch {
		t.Error("expected Watch to be false")
	}
	if config.Debounce() != 50*time.Millisecond {
		t.Errorf("expected Debounce 50ms, got %v", config.Debounce())
	}
}

func TestLoadFromFile_BoostsDefaulting(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"absent key keeps defaults", "engine:\n  cadence: 2\n", len(trigger.DefaultBoostRules())},
		{"empty list disables", "engine:\n  boosts: []\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0600); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			config, err := LoadFromFile(configPath)
			if err != nil {
				t.Fatalf("LoadFromFile failed: %v", err)
			}
			if len(config.Engine.Boosts) != tt.want {
				t.Errorf("len(Boosts) = %d, want %d", len(config.Engine.Boosts), tt.want)
			}
		})
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
library:
  path: ${TEST_NUDGE_DIR}/pack.yaml
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("TEST_NUDGE_DIR", "/srv/nudge")

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Library.Path != "/srv/nudge/pack.yaml" {
		t.Errorf("expected Library.Path '/srv/nudge/pack.yaml', got '%s'", config.Library.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NUDGE_CADENCE", "7")
	t.Setenv("NUDGE_TOP_K", "9")
	t.Setenv("NUDGE_LIBRARY", "/etc/nudge/pack.yaml")
	t.Setenv("NUDGE_WATCH", "false")
	t.Setenv("NUDGE_LOG_LEVEL", "debug")

	config := Default()
	applyEnvOverrides(config)

	if config.Engine.Cadence != 7 {
		t.Errorf("expected Cadence 7, got %d", config.Engine.Cadence)
	}
	if config.Engine.TopK != 9 {
		t.Errorf("expected TopK 9, got %d", config.Engine.TopK)
	}
	if config.Library.Path != "/etc/nudge/pack.yaml" {
		t.Errorf("expected Library.Path '/etc/nudge/pack.yaml', got '%s'", config.Library.Path)
	}
	if config.Library.Watch {
		t.Error("expected Watch to be false")
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverrides_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("NUDGE_CADENCE", "three")

	config := Default()
	applyEnvOverrides(config)

	if config.Engine.Cadence != 3 {
		t.Errorf("expected Cadence to stay 3, got %d", config.Engine.Cadence)
	}
}

func TestValidate_Valid(t *testing.T) {
	config := Default()
	if err := config.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *NudgeConfig)
	}{
		{"zero cadence", func(c *NudgeConfig) { c.Engine.Cadence = 0 }},
		{"negative cadence", func(c *NudgeConfig) { c.Engine.Cadence = -3 }},
		{"zero top_k", func(c *NudgeConfig) { c.Engine.TopK = 0 }},
		{"threshold below 0", func(c *NudgeConfig) { c.Engine.DefaultThreshold = -0.1 }},
		{"threshold above 1", func(c *NudgeConfig) { c.Engine.DefaultThreshold = 1.5 }},
		{"negative weight", func(c *NudgeConfig) { c.Engine.Weights.Keyword = -1 }},
		{"all weights zero", func(c *NudgeConfig) { c.Engine.Weights = trigger.Weights{} }},
		{"boost factor below 1", func(c *NudgeConfig) {
			c.Engine.Boosts = []trigger.BoostRule{{Domain: "tdd", Indicators: []string{"test"}, Factor: 0.9}}
		}},
		{"negative debounce", func(c *NudgeConfig) { c.Library.DebounceMillis = -1 }},
		{"unknown log level", func(c *NudgeConfig) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"", "info", "debug", "trace"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			config := Default()
			config.Logging.Level = level
			if err := config.Validate(); err != nil {
				t.Errorf("expected log level '%s' to be valid, got error: %v", level, err)
			}
		})
	}
}

func TestBuildSelector(t *testing.T) {
	config := Default()
	config.Engine.Cadence = 4

	sel, err := config.BuildSelector()
	if err != nil {
		t.Fatalf("BuildSelector failed: %v", err)
	}
	if got := sel.Scheduler().Cadence(); got != 4 {
		t.Errorf("Cadence() = %d, want 4", got)
	}
	if got := sel.Engine().Weights(); got != config.Engine.Weights {
		t.Errorf("Weights() = %+v, want %+v", got, config.Engine.Weights)
	}
}

func TestBuildSelector_InvalidCadence(t *testing.T) {
	config := Default()
	config.Engine.Cadence = 0
	if _, err := config.BuildSelector(); err == nil {
		t.Error("expected error for zero cadence")
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	invalidYAML := `
engine:
  cadence: [invalid yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
