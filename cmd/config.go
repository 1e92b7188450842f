package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/tracking-sim/sim/runner"
)

// loadRunConfig reads a YAML run config. Keys left out keep their defaults;
// unknown keys are rejected.
//
//	cpu_cores: 12
//	video_streams: 6
//	total_frames: 1464
//	nn_cache: REAL_FULL
//	enable_new_module: true
//	runs: 5
//	seed: 0
func loadRunConfig(path string) (runner.Config, error) {
	cfg := runner.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read run config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse run config %s: %w", path, err)
	}
	return cfg, nil
}
