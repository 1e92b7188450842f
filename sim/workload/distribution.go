package workload

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/tracking-sim/sim"
)

// NanosPerMilli converts trace timestamps (ns) into the simulator's ms clock.
const NanosPerMilli = 1e6

// EmpiricalSampler replays recorded service times, drawing one uniformly at
// random per call.
type EmpiricalSampler struct {
	samples []float64
}

// NewEmpiricalSampler creates a sampler over a non-empty sample set.
func NewEmpiricalSampler(samples []float64) (*EmpiricalSampler, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empirical distribution needs at least one sample")
	}
	cp := make([]float64, len(samples))
	copy(cp, samples)
	return &EmpiricalSampler{samples: cp}, nil
}

func (s *EmpiricalSampler) Sample(rng *rand.Rand) float64 {
	return s.samples[rng.Intn(len(s.samples))]
}

// Len returns the number of recorded samples.
func (s *EmpiricalSampler) Len() int { return len(s.samples) }

// UniformSampler draws from a uniform distribution with a given mean and
// standard deviation. The lower bound is floored at zero.
type UniformSampler struct {
	min, max float64
}

// NewUniformSampler derives bounds from mean and std: a uniform variable of
// width w has variance w²/12.
func NewUniformSampler(mean, std float64) (*UniformSampler, error) {
	if math.IsNaN(mean) || math.IsInf(mean, 0) || math.IsNaN(std) || math.IsInf(std, 0) {
		return nil, fmt.Errorf("uniform distribution: invalid mean %v / std %v", mean, std)
	}
	if std < 0 {
		return nil, fmt.Errorf("uniform distribution: std must be >= 0, got %v", std)
	}
	width := std * math.Sqrt(12)
	return &UniformSampler{
		min: math.Max(0, mean-width/2),
		max: mean + width/2,
	}, nil
}

// FitUniformSampler fits a UniformSampler to the population mean and
// standard deviation of samples.
func FitUniformSampler(samples []float64) (*UniformSampler, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("uniform distribution needs at least one sample")
	}
	mean, std := stat.PopMeanStdDev(samples, nil)
	return NewUniformSampler(mean, std)
}

func (s *UniformSampler) Sample(rng *rand.Rand) float64 {
	return s.min + (s.max-s.min)*rng.Float64()
}

// Bounds returns the sampler's [min, max] range.
func (s *UniformSampler) Bounds() (float64, float64) { return s.min, s.max }

// ConstantSampler always returns the same duration.
type ConstantSampler struct {
	value float64
}

// NewConstantSampler creates a sampler that always returns value.
func NewConstantSampler(value float64) *ConstantSampler {
	return &ConstantSampler{value: value}
}

func (s *ConstantSampler) Sample(_ *rand.Rand) float64 {
	return s.value
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// NewSampler creates a duration sampler from a DistSpec.
func NewSampler(spec DistSpec) (sim.Sampler, error) {
	switch spec.Type {
	case "constant":
		if err := requireParam(spec.Params, "value"); err != nil {
			return nil, err
		}
		return NewConstantSampler(spec.Params["value"]), nil

	case "uniform":
		if err := requireParam(spec.Params, "mean", "std_dev"); err != nil {
			return nil, err
		}
		return NewUniformSampler(spec.Params["mean"], spec.Params["std_dev"])

	case "empirical":
		return NewEmpiricalSampler(spec.Samples)

	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}
