// Package config loads the planner's tunable machine parameters: per-axis
// jerk and junction-deviation settings, the global junction acceleration,
// the executor's segment duration, the pool size, and the tolerance
// constants from spec.md §6. Defaults are overlaid by a JSON config file
// and then by environment variables, mirroring the teacher's layered
// Config.Apply approach.
package config

import (
	"encoding/json"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	null "gopkg.in/guregu/null.v3"
)

// NumAxes is the compile-time axis count (spec.md §3: "typically 6").
const NumAxes = 6

// Defaults match the end-to-end scenarios in spec.md §8.
const (
	DefaultJerkMax             = 5e7
	DefaultJunctionDeviation   = 0.05
	DefaultJunctionAccel       = 2e5
	DefaultSegmentTargetUs     = 5000
	DefaultPoolSize            = 48
	DefaultEpsilon             = 1e-10
	DefaultVelocityTolerance   = 1e-4
	DefaultLengthTolerance     = 1e-6
	DefaultMinSectionLength    = 0.001
	DefaultLengthFactor        = 2.0
	DefaultIterationErrorPct   = 0.01
	DefaultMaxIterations       = 20
	DefaultFixedPointIter      = 20
)

// Config holds every tunable the planner needs. It is deliberately flat
// (no nested per-component sub-configs) since every component in
// internal/planner reads the same tolerance set.
type Config struct {
	JerkMax           [NumAxes]float64 `json:"jerkMax" envconfig:"jerk_max"`
	JunctionDeviation [NumAxes]float64 `json:"junctionDeviation" envconfig:"junction_deviation"`
	JunctionAccel     float64          `json:"junctionAccel" envconfig:"junction_accel"`
	SegmentTargetUs   float64          `json:"segmentTargetUs" envconfig:"segment_target_us"`
	PoolSize          int              `json:"poolSize" envconfig:"pool_size"`

	Epsilon           null.Float `json:"epsilon" envconfig:"epsilon"`
	VelocityTolerance null.Float `json:"velocityTolerance" envconfig:"velocity_tolerance"`
	LengthTolerance   null.Float `json:"lengthTolerance" envconfig:"length_tolerance"`
	MinSectionLength  null.Float `json:"minSectionLength" envconfig:"min_section_length"`
	LengthFactor      null.Float `json:"lengthFactor" envconfig:"length_factor"`
	IterationErrorPct null.Float `json:"iterationErrorPct" envconfig:"iteration_error_pct"`
}

// Default returns the configuration used by spec.md §8's end-to-end
// scenarios: uniform jerk/deviation across all axes.
func Default() Config {
	var c Config
	for i := range c.JerkMax {
		c.JerkMax[i] = DefaultJerkMax
		c.JunctionDeviation[i] = DefaultJunctionDeviation
	}
	c.JunctionAccel = DefaultJunctionAccel
	c.SegmentTargetUs = DefaultSegmentTargetUs
	c.PoolSize = DefaultPoolSize
	c.Epsilon = null.FloatFrom(DefaultEpsilon)
	c.VelocityTolerance = null.FloatFrom(DefaultVelocityTolerance)
	c.LengthTolerance = null.FloatFrom(DefaultLengthTolerance)
	c.MinSectionLength = null.FloatFrom(DefaultMinSectionLength)
	c.LengthFactor = null.FloatFrom(DefaultLengthFactor)
	c.IterationErrorPct = null.FloatFrom(DefaultIterationErrorPct)
	return c
}

// Apply overlays non-zero/valid fields of cfg onto c and returns the
// result, the same left-to-right merge the teacher's Config.Apply uses.
func (c Config) Apply(cfg Config) Config {
	if cfg.JerkMax != [NumAxes]float64{} {
		c.JerkMax = cfg.JerkMax
	}
	if cfg.JunctionDeviation != [NumAxes]float64{} {
		c.JunctionDeviation = cfg.JunctionDeviation
	}
	if cfg.JunctionAccel != 0 {
		c.JunctionAccel = cfg.JunctionAccel
	}
	if cfg.SegmentTargetUs != 0 {
		c.SegmentTargetUs = cfg.SegmentTargetUs
	}
	if cfg.PoolSize != 0 {
		c.PoolSize = cfg.PoolSize
	}
	if cfg.Epsilon.Valid {
		c.Epsilon = cfg.Epsilon
	}
	if cfg.VelocityTolerance.Valid {
		c.VelocityTolerance = cfg.VelocityTolerance
	}
	if cfg.LengthTolerance.Valid {
		c.LengthTolerance = cfg.LengthTolerance
	}
	if cfg.MinSectionLength.Valid {
		c.MinSectionLength = cfg.MinSectionLength
	}
	if cfg.LengthFactor.Valid {
		c.LengthFactor = cfg.LengthFactor
	}
	if cfg.IterationErrorPct.Valid {
		c.IterationErrorPct = cfg.IterationErrorPct
	}
	return c
}

// ReadFile loads a JSON config file from fs, overlaid onto Default().
func ReadFile(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, err
	}
	var fromFile Config
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return cfg, err
	}
	return cfg.Apply(fromFile), nil
}

// ReadEnv overlays environment variables (prefixed TRAJPLAN_) onto cfg.
func ReadEnv(cfg Config) (Config, error) {
	var fromEnv Config
	if err := envconfig.Process("trajplan", &fromEnv); err != nil {
		return cfg, err
	}
	return cfg.Apply(fromEnv), nil
}
