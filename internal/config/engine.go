package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/nudge/internal/constants"
	"github.com/nvandessel/nudge/internal/scheduler"
	"github.com/nvandessel/nudge/internal/selector"
	"github.com/nvandessel/nudge/internal/trigger"
)

// BuildEngine compiles the engine settings into a trigger engine.
func (c *NudgeConfig) BuildEngine() (*trigger.Engine, error) {
	boosts, err := trigger.BoostsFromRules(c.Engine.Boosts)
	if err != nil {
		return nil, fmt.Errorf("compiling boosts: %w", err)
	}
	return trigger.NewEngine(c.Engine.Weights, boosts...), nil
}

// BuildSelector wires the engine and a cadence scheduler into a selector.
func (c *NudgeConfig) BuildSelector() (*selector.Selector, error) {
	engine, err := c.BuildEngine()
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(c.Engine.Cadence)
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	return selector.New(engine, sched)
}

// Debounce returns the reload debounce as a duration.
func (c *NudgeConfig) Debounce() time.Duration {
	return time.Duration(c.Library.DebounceMillis) * time.Millisecond
}

// DecisionLogPath returns where decisions.jsonl lives.
func (c *NudgeConfig) DecisionLogPath() string {
	return filepath.Join(c.Logging.Dir, constants.DecisionLogFileName)
}
