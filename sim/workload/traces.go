package workload

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/tracking-sim/sim"
)

const (
	// KeyDecoder is fed from the decoder stopwatch log.
	KeyDecoder = "decoder"
	// KeyCompilation is the first inferencer sample: the model compile time.
	KeyCompilation = sim.DefaultCompileDistribution
	// KeyInferencer is every inferencer sample after the first.
	KeyInferencer = "nn_inferencer"

	// tbbPrefix marks TBB runtime-internal tasks, which are not pipeline stages.
	tbbPrefix = "tbb_"
)

// TraceFiles names the recorded traces of one profiled pipeline run.
type TraceFiles struct {
	Graphs             []string
	GraphTraces        string
	NNInferencerTraces string
	DecoderTraces      string
}

// Validate reports missing inputs.
func (f TraceFiles) Validate() error {
	var missing []string
	if len(f.Graphs) == 0 {
		missing = append(missing, "graphs")
	}
	if f.GraphTraces == "" {
		missing = append(missing, "graph traces")
	}
	if f.NNInferencerTraces == "" {
		missing = append(missing, "nn inferencer traces")
	}
	if f.DecoderTraces == "" {
		missing = append(missing, "decoder traces")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing trace inputs: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LoadTraces parses every trace file and merges the stopwatch logs in under
// the decoder, compilation and inferencer keys.
func LoadTraces(files TraceFiles) (Traces, error) {
	if err := files.Validate(); err != nil {
		return nil, err
	}
	names, err := ParseGraphML(files.Graphs...)
	if err != nil {
		return nil, err
	}
	traces, err := ParseTraceML(files.GraphTraces, names)
	if err != nil {
		return nil, err
	}
	inferencer, err := ParseStopwatch(files.NNInferencerTraces)
	if err != nil {
		return nil, err
	}
	if len(inferencer) == 0 {
		return nil, fmt.Errorf("inferencer log %s is empty", files.NNInferencerTraces)
	}
	decoder, err := ParseStopwatch(files.DecoderTraces)
	if err != nil {
		return nil, err
	}

	traces[KeyDecoder] = decoder
	traces[KeyCompilation] = inferencer[:1]
	traces[KeyInferencer] = inferencer[1:]

	logrus.Debugf("loaded traces for %d stages from %s", len(traces), files.GraphTraces)
	return traces, nil
}

// NewSamplersFromTraces converts recorded durations (ns) into millisecond
// samplers. With uniform set, each stage gets a UniformSampler fitted to its
// samples; otherwise the samples are replayed as is.
func NewSamplersFromTraces(traces Traces, uniform bool) (map[string]sim.Sampler, error) {
	keys := make([]string, 0, len(traces))
	for k := range traces {
		if strings.HasPrefix(k, tbbPrefix) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	samplers := make(map[string]sim.Sampler, len(keys))
	for _, k := range keys {
		ms := make([]float64, len(traces[k]))
		for i, ns := range traces[k] {
			ms[i] = float64(ns) / NanosPerMilli
		}
		var (
			s   sim.Sampler
			err error
		)
		if uniform {
			s, err = FitUniformSampler(ms)
		} else {
			s, err = NewEmpiricalSampler(ms)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", k, err)
		}
		samplers[k] = s
	}
	return samplers, nil
}

// FitDistSpecs converts recorded durations into a distribution file that
// LoadDistSpecs accepts: fitted uniform parameters with uniform set, the raw
// millisecond samples otherwise.
func FitDistSpecs(traces Traces, uniform bool) (*DistributionFile, error) {
	file := &DistributionFile{Distributions: make(map[string]DistSpec, len(traces))}
	for k, ns := range traces {
		if strings.HasPrefix(k, tbbPrefix) {
			continue
		}
		if len(ns) == 0 {
			return nil, fmt.Errorf("stage %q: no samples", k)
		}
		ms := make([]float64, len(ns))
		for i, v := range ns {
			ms[i] = float64(v) / NanosPerMilli
		}
		if uniform {
			mean, std := stat.PopMeanStdDev(ms, nil)
			file.Distributions[k] = DistSpec{
				Type:   "uniform",
				Params: map[string]float64{"mean": mean, "std_dev": std},
			}
			continue
		}
		file.Distributions[k] = DistSpec{Type: "empirical", Samples: ms}
	}
	return file, nil
}
