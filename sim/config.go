package sim

import (
	"math/rand"

	"github.com/inference-sim/tracking-sim/sim/trace"
)

// Sampler draws a service duration in ms. Implementations live in sim/workload.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// SamplerFunc adapts a plain function to the Sampler interface.
type SamplerFunc func(rng *rand.Rand) float64

// Sample calls f(rng).
func (f SamplerFunc) Sample(rng *rand.Rand) float64 { return f(rng) }

// DurationFunc is the zero-argument sampling function a stage calls for each
// service time. It is bound to a run's RNG by Simulator.DurationFunc.
type DurationFunc func() float64

// Config groups the run-scoped simulation parameters.
type Config struct {
	CPUCores  int                // CPU pool capacity (must be > 0)
	CacheMode CacheMode          // NN cache behaviour for every stream
	Samplers  map[string]Sampler // distribution key → sampler
	Trace     trace.TraceConfig  // execution tracing (zero value = off)
}

// NewConfig creates a Config with all fields explicitly set.
func NewConfig(cpuCores int, cacheMode CacheMode, samplers map[string]Sampler, traceConfig trace.TraceConfig) Config {
	return Config{
		CPUCores:  cpuCores,
		CacheMode: cacheMode,
		Samplers:  samplers,
		Trace:     traceConfig,
	}
}
