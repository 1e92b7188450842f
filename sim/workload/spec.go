package workload

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/tracking-sim/sim"
)

// DistSpec parameterizes a synthetic service-time distribution (ms).
type DistSpec struct {
	Type    string             `yaml:"type"`
	Params  map[string]float64 `yaml:"params,omitempty"`
	Samples []float64          `yaml:"samples,omitempty"`
}

// DistributionFile is the top-level YAML document for --distributions.
//
//	distributions:
//	  decoder: {type: uniform, params: {mean: 6.1, std_dev: 0.13}}
//	  nn_compilation: {type: constant, params: {value: 5000}}
type DistributionFile struct {
	Distributions map[string]DistSpec `yaml:"distributions"`
}

// ParseDistSpecs decodes a distribution file with strict field checking
// and builds one sampler per key.
func ParseDistSpecs(data []byte) (map[string]sim.Sampler, error) {
	var file DistributionFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse distributions: %w", err)
	}
	if len(file.Distributions) == 0 {
		return nil, fmt.Errorf("distribution file defines no distributions")
	}

	keys := make([]string, 0, len(file.Distributions))
	for k := range file.Distributions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	samplers := make(map[string]sim.Sampler, len(keys))
	for _, k := range keys {
		s, err := NewSampler(file.Distributions[k])
		if err != nil {
			return nil, fmt.Errorf("distribution %q: %w", k, err)
		}
		samplers[k] = s
	}
	return samplers, nil
}

// LoadDistSpecs reads a YAML distribution file.
func LoadDistSpecs(path string) (map[string]sim.Sampler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read distributions %s: %w", path, err)
	}
	return ParseDistSpecs(data)
}
