// Package runner repeats seeded simulation runs of the tracking pipeline and
// aggregates their throughput.
package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/tracking-sim/sim"
	"github.com/inference-sim/tracking-sim/sim/trace"
)

// ErrStalled is returned when the event queue drains while a stream still has
// frames outstanding. This only happens on a structural deadlock, such as a
// join that can never collect enough arrivals.
var ErrStalled = errors.New("simulation stalled")

// runNamespace scopes the name-based run ids.
var runNamespace = uuid.MustParse("6f1c7a52-3d0e-4b8e-9a41-2f5d8c0e7b13")

// RunResult is the outcome of one seeded run.
type RunResult struct {
	ID             uuid.UUID
	Seed           int64
	StreamFPS      []float64
	MeanFPS        float64
	EndTime        float64 // virtual ms at which the last event ran
	Compilations   int
	ClampedSamples int
	Trace          *trace.SimulationTrace // nil unless tracing is enabled
}

// Report aggregates every run of a batch.
type Report struct {
	Runs []RunResult
	// MeanFPS is the mean of the per-run mean FPS.
	MeanFPS float64
	// RunFPS summarizes the per-run mean FPS.
	RunFPS Distribution
}

// Runner executes a batch of runs with one configuration.
type Runner struct {
	config   Config
	topology *sim.Topology
	samplers map[string]sim.Sampler
	hasRun   bool
}

// New validates the configuration and checks that every distribution the
// pipeline samples has a sampler.
func New(cfg Config, samplers map[string]sim.Sampler) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	topo := cfg.topology()
	var missing []string
	for _, key := range topo.DistributionKeysFor(cfg.CacheMode) {
		if _, ok := samplers[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing distributions: %s", strings.Join(missing, ", "))
	}
	return &Runner{config: cfg, topology: topo, samplers: samplers}, nil
}

// Config returns the validated configuration.
func (r *Runner) Config() Config {
	return r.config
}

// Run executes seeds Seed .. Seed+Runs-1 in order and aggregates the results.
// Panics if called more than once.
func (r *Runner) Run() (*Report, error) {
	if r.hasRun {
		panic("Runner.Run() called more than once")
	}
	r.hasRun = true

	report := &Report{Runs: make([]RunResult, 0, r.config.Runs)}
	means := make([]float64, 0, r.config.Runs)
	for i := 0; i < r.config.Runs; i++ {
		res, err := r.RunOnce(r.config.Seed + int64(i))
		if err != nil {
			return nil, err
		}
		report.Runs = append(report.Runs, *res)
		means = append(means, res.MeanFPS)
	}
	report.MeanFPS = stat.Mean(means, nil)
	report.RunFPS = NewDistribution(means)
	return report, nil
}

// RunOnce builds a fresh simulator for seed, runs every stream to completion
// and returns the per-stream throughput.
func (r *Runner) RunOnce(seed int64) (*RunResult, error) {
	id := r.RunID(seed)
	log := logrus.WithFields(logrus.Fields{"run": id.String(), "seed": seed})

	cfg := sim.NewConfig(r.config.CPUCores, r.config.CacheMode, r.samplers, r.config.Trace)
	s, err := sim.NewSimulator(cfg, sim.NewSimulationKey(seed))
	if err != nil {
		return nil, err
	}
	streams := make([]*sim.Stream, r.config.VideoStreams)
	for i := range streams {
		g, err := sim.NewGraph(s, r.topology, i)
		if err != nil {
			return nil, fmt.Errorf("stream %d: %w", i, err)
		}
		streams[i], err = sim.NewStream(s, g, i, r.config.TotalFrames)
		if err != nil {
			return nil, err
		}
	}

	log.Infof("starting run: %d streams x %d frames on %d cores (cache %v)",
		r.config.VideoStreams, r.config.TotalFrames, r.config.CPUCores, r.config.CacheMode)
	for _, st := range streams {
		st.Start()
	}
	s.Run()

	res := &RunResult{
		ID:             id,
		Seed:           seed,
		StreamFPS:      make([]float64, len(streams)),
		EndTime:        s.Now(),
		Compilations:   s.Compilations(),
		ClampedSamples: s.ClampedSamples(),
		Trace:          s.Trace(),
	}
	for i, st := range streams {
		if !st.Finished() {
			return nil, fmt.Errorf("run %s: stream %d completed %d/%d frames at t=%.3fms: %w",
				id, st.ID(), st.Frames(), r.config.TotalFrames, s.Now(), ErrStalled)
		}
		res.StreamFPS[i] = st.FPS()
	}
	res.MeanFPS = stat.Mean(res.StreamFPS, nil)

	log.WithFields(logrus.Fields{
		"end_ms":       res.EndTime,
		"compilations": res.Compilations,
		"clamped":      res.ClampedSamples,
	}).Infof("run finished: mean FPS %.3f", res.MeanFPS)
	return res, nil
}

// RunID derives a stable id for the run of seed under this configuration.
func (r *Runner) RunID(seed int64) uuid.UUID {
	var sb strings.Builder
	fmt.Fprintf(&sb, "cores=%d streams=%d frames=%d cache=%v seed=%d stages=",
		r.config.CPUCores, r.config.VideoStreams, r.config.TotalFrames, r.config.CacheMode, seed)
	for i, st := range r.topology.Stages {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(st.Name)
	}
	return uuid.NewSHA1(runNamespace, []byte(sb.String()))
}
