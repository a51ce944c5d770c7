package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/san-kum/testbed/internal/testbed"
)

// Presets are named adjustments applied on top of DefaultConfig.
var Presets = map[string]func(*Config){
	"default": func(*Config) {},
	"precise": func(c *Config) {
		c.Dt = 1.0 / 120.0
		c.StepsPerFrame = 2
		c.Solver.VelocityIterations = 10
		c.Solver.MaxCCDSubsteps = 4
	},
	"fast": func(c *Config) {
		c.Solver.VelocityIterations = 2
		c.Flags.Sleep = true
	},
	"parallel": func(c *Config) {
		c.Parallel = true
	},
	"bench": func(c *Config) {
		c.Parallel = true
		c.Flags = testbed.StateFlags{Sleep: true}
		c.Bench.Iterations = 1000
	},
	"nosleep": func(c *Config) {
		c.Flags.Sleep = false
	},
}

func GetPreset(name string) (*Config, error) {
	apply, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoPreset, name)
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg, nil
}

func ListPresets() []string {
	return slices.Sorted(maps.Keys(Presets))
}
