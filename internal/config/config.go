package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/testbed/internal/backend"
	"github.com/san-kum/testbed/internal/pool"
	"github.com/san-kum/testbed/internal/testbed"
	"github.com/san-kum/testbed/internal/world"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt              = 1.0 / 60.0
	DefaultGravity         = -9.81
	DefaultBenchIterations = 1000
	DefaultOutputDir       = "bench"
	DefaultDataDir         = ".testbed"
)

type Config struct {
	Dt            float64                     `yaml:"dt"`
	StepsPerFrame int                         `yaml:"steps_per_frame"`
	Parallel      bool                        `yaml:"parallel"`
	Workers       int                         `yaml:"workers"`
	Gravity       [2]float64                  `yaml:"gravity"`
	Solver        SolverConfig                `yaml:"solver"`
	Backends      map[string]backend.Settings `yaml:"backends"`
	StartPaused   bool                        `yaml:"start_paused"`
	Example       string                      `yaml:"example"`
	Backend       string                      `yaml:"backend"`
	Bench         BenchConfig                 `yaml:"bench"`
	LogLevel      string                      `yaml:"log_level"`
	DataDir       string                      `yaml:"data_dir"`
	Flags         testbed.StateFlags          `yaml:"flags"`
}

// SolverConfig holds the canonical engine's integration parameters.
type SolverConfig struct {
	VelocityIterations int     `yaml:"velocity_iterations"`
	PositionIterations int     `yaml:"position_iterations"`
	MaxCCDSubsteps     int     `yaml:"max_ccd_substeps"`
	AllowedPenetration float64 `yaml:"allowed_penetration"`
	ERP                float64 `yaml:"erp"`
}

type BenchConfig struct {
	Iterations int      `yaml:"iterations"`
	OutputDir  string   `yaml:"output_dir"`
	Scenarios  []string `yaml:"scenarios"`
	Backends   []string `yaml:"backends"`
}

func DefaultConfig() *Config {
	p := world.DefaultIntegrationParams()
	return &Config{
		Dt:            DefaultDt,
		StepsPerFrame: 1,
		Workers:       pool.DefaultSize(),
		Gravity:       [2]float64{0, DefaultGravity},
		Solver: SolverConfig{
			VelocityIterations: p.VelocityIterations,
			PositionIterations: p.PositionIterations,
			MaxCCDSubsteps:     p.MaxCCDSubsteps,
			AllowedPenetration: p.AllowedPenetration,
			ERP:                p.ERP,
		},
		Backends: map[string]backend.Settings{
			"box2d":    {VelocityIterations: 8, PositionIterations: 3},
			"chipmunk": {VelocityIterations: 10},
		},
		Bench: BenchConfig{
			Iterations: DefaultBenchIterations,
			OutputDir:  DefaultOutputDir,
		},
		LogLevel: "info",
		DataDir:  DefaultDataDir,
		Flags:    testbed.DefaultStateFlags(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", filepath.Base(path), err)
	}
	return cfg, cfg.Validate()
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings the testbed cannot start with.
func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("%w, got %f", ErrInvalidDt, c.Dt)
	}
	if c.Parallel && c.Workers < 1 {
		return fmt.Errorf("%w: %d workers", pool.ErrSize, c.Workers)
	}
	if c.Bench.Iterations < 1 {
		return fmt.Errorf("%w: %d", ErrIterations, c.Bench.Iterations)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) Params() world.IntegrationParams {
	return world.IntegrationParams{
		Dt:                    c.Dt,
		VelocityIterations:    c.Solver.VelocityIterations,
		PositionIterations:    c.Solver.PositionIterations,
		MaxCCDSubsteps:        c.Solver.MaxCCDSubsteps,
		ReturnAfterCCDSubstep: c.Flags.SubStepping,
		AllowedPenetration:    c.Solver.AllowedPenetration,
		ERP:                   c.Solver.ERP,
	}
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Options maps the config onto testbed options. Scenarios and the logger
// are left to the caller.
func (c *Config) Options() testbed.Options {
	opts := testbed.DefaultOptions()
	opts.Settings = c.Backends
	opts.Parallel = c.Parallel
	opts.Workers = c.Workers
	opts.Gravity = mgl64.Vec2{c.Gravity[0], c.Gravity[1]}
	opts.Params = c.Params()
	opts.StepsPerFrame = c.StepsPerFrame
	opts.StartPaused = c.StartPaused
	opts.Example = c.Example
	opts.Backend = c.Backend
	opts.Flags = c.Flags
	return opts
}
