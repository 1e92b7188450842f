package runner

import (
	"fmt"

	"github.com/inference-sim/tracking-sim/sim"
	"github.com/inference-sim/tracking-sim/sim/trace"
)

// Default run options, matching the profiled production deployment.
const (
	DefaultCPUCores     = 12
	DefaultVideoStreams = 6
	DefaultTotalFrames  = 1464
	DefaultRuns         = 1
)

// Config groups the options of a batch of seeded runs.
type Config struct {
	CPUCores              int           `yaml:"cpu_cores"`
	VideoStreams          int           `yaml:"video_streams"`
	TotalFrames           int           `yaml:"total_frames"`
	CacheMode             sim.CacheMode `yaml:"nn_cache"`
	ExtendedModuleEnabled bool          `yaml:"enable_new_module"`
	Runs                  int           `yaml:"runs"`
	Seed                  int64         `yaml:"seed"` // first seed; run i uses Seed+i

	// Topology overrides the built-in tracking pipeline when set.
	Topology *sim.Topology `yaml:"-"`
	// Trace enables per-run execution traces.
	Trace trace.TraceConfig `yaml:"-"`
}

// DefaultConfig returns the options used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		CPUCores:     DefaultCPUCores,
		VideoStreams: DefaultVideoStreams,
		TotalFrames:  DefaultTotalFrames,
		CacheMode:    sim.CacheNotActivated,
		Runs:         DefaultRuns,
	}
}

// Validate reports configuration errors before anything runs.
func (c Config) Validate() error {
	if c.CPUCores < 1 {
		return fmt.Errorf("cpu cores must be >= 1, got %d", c.CPUCores)
	}
	if c.VideoStreams < 1 {
		return fmt.Errorf("video streams must be >= 1, got %d", c.VideoStreams)
	}
	if c.TotalFrames < 1 {
		return fmt.Errorf("total frames must be >= 1, got %d", c.TotalFrames)
	}
	if c.Runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d", c.Runs)
	}
	if c.CacheMode < sim.CacheNotActivated || c.CacheMode > sim.CacheIdealFull {
		return fmt.Errorf("invalid cache mode %v", c.CacheMode)
	}
	if !trace.IsValidTraceLevel(string(c.Trace.Level)) {
		return fmt.Errorf("invalid trace level %q", c.Trace.Level)
	}
	if err := c.topology().Validate(); err != nil {
		return fmt.Errorf("invalid topology: %w", err)
	}
	return nil
}

// topology returns the configured pipeline, or the tracking pipeline selected
// by ExtendedModuleEnabled.
func (c Config) topology() *sim.Topology {
	if c.Topology != nil {
		return c.Topology
	}
	return sim.VideoTrackingTopology(c.ExtendedModuleEnabled)
}
