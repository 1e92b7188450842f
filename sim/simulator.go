package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/tracking-sim/sim/trace"
)

// Simulator holds the state shared by every stream of one run: the clock,
// the resource pools, the one-time compile flag and the cache mode.
// Nothing here is package-global, so independent runs never interact.
type Simulator struct {
	Sched *Scheduler
	CPU   *Resource
	GPU   *Resource

	mutexes   map[string]*Resource
	rng       *PartitionedRNG
	samplers  map[string]Sampler
	cacheMode CacheMode
	trace     *trace.SimulationTrace

	compiled     bool
	compilations int
	clamped      int
}

// NewSimulator creates the scheduler and pools for one run.
func NewSimulator(cfg Config, key SimulationKey) (*Simulator, error) {
	if cfg.CacheMode < CacheNotActivated || cfg.CacheMode > CacheIdealFull {
		return nil, fmt.Errorf("invalid cache mode %v", cfg.CacheMode)
	}
	sched := NewScheduler()
	cpu, err := NewResource(sched, ResourceCPU, cfg.CPUCores)
	if err != nil {
		return nil, err
	}
	gpu, err := NewResource(sched, ResourceGPU, 1)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		Sched:     sched,
		CPU:       cpu,
		GPU:       gpu,
		mutexes:   make(map[string]*Resource, len(knownMutexes)),
		rng:       NewPartitionedRNG(key),
		samplers:  cfg.Samplers,
		cacheMode: cfg.CacheMode,
	}
	if s.samplers == nil {
		s.samplers = map[string]Sampler{}
	}
	for _, name := range knownMutexes {
		mu, err := NewResource(sched, name, 1)
		if err != nil {
			return nil, err
		}
		s.mutexes[name] = mu
	}
	if cfg.Trace.Level == trace.TraceLevelStages {
		s.trace = trace.NewSimulationTrace(cfg.Trace)
		s.CPU.trace = s.trace
		s.GPU.trace = s.trace
		for _, mu := range s.mutexes {
			mu.trace = s.trace
		}
	}
	return s, nil
}

// Now returns the current virtual time in ms.
func (s *Simulator) Now() float64 {
	return s.Sched.Now()
}

// Run drives the scheduler until no events remain.
func (s *Simulator) Run() {
	s.Sched.RunUntilIdle()
}

// CacheMode returns the run's cache mode.
func (s *Simulator) CacheMode() CacheMode {
	return s.cacheMode
}

// Mutex returns the named mutual-exclusion pool.
func (s *Simulator) Mutex(name string) (*Resource, bool) {
	mu, ok := s.mutexes[name]
	return mu, ok
}

// Trace returns the execution trace, or nil when tracing is off.
func (s *Simulator) Trace() *trace.SimulationTrace {
	return s.trace
}

// Compilations returns how many times the GPU compile branch ran.
func (s *Simulator) Compilations() int {
	return s.compilations
}

// ClampedSamples returns how many negative samples were clamped to zero.
func (s *Simulator) ClampedSamples() int {
	return s.clamped
}

// HasDistribution reports whether a sampler is registered under key.
func (s *Simulator) HasDistribution(key string) bool {
	_, ok := s.samplers[key]
	return ok
}

// DurationFunc binds the sampler registered under key to this run's RNG
// stream for that key.
//
// Negative samples are clamped to zero and counted. NaN or infinite samples
// violate the sampling contract and panic.
func (s *Simulator) DurationFunc(key string) (DurationFunc, error) {
	sampler, ok := s.samplers[key]
	if !ok {
		return nil, fmt.Errorf("no duration distribution for %q", key)
	}
	rng := s.rng.ForSubsystem(SubsystemDistribution(key))
	return func() float64 {
		d := sampler.Sample(rng)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			panic(fmt.Sprintf("distribution %q returned invalid duration %v", key, d))
		}
		if d < 0 {
			s.clamped++
			logrus.Warnf("distribution %q returned negative duration %v; clamped to 0", key, d)
			return 0
		}
		return d
	}, nil
}

// claimCompile returns true exactly once per run: for the first GPU
// invocation, which pays the model compilation time.
func (s *Simulator) claimCompile() bool {
	if s.compiled {
		return false
	}
	s.compiled = true
	s.compilations++
	return true
}

func zeroDuration() float64 { return 0 }
