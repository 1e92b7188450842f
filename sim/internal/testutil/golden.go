// Package testutil provides shared test infrastructure for the tracking
// simulator: the golden throughput dataset and float assertion helpers.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one run configuration of the default pipeline with
// constant stage durations, together with the throughput it must produce.
type GoldenTestCase struct {
	Name                string             `json:"name"`
	CPUCores            int                `json:"cpu-cores"`
	VideoStreams        int                `json:"video-streams"`
	TotalFrames         int                `json:"total-frames"`
	NNCache             string             `json:"nn-cache"`
	EnableNewModule     bool               `json:"enable-new-module"`
	Seed                int64              `json:"seed"`
	DefaultDurationMs   float64            `json:"default-duration-ms"`
	DurationOverridesMs map[string]float64 `json:"duration-overrides-ms"`
	Metrics             GoldenMetrics      `json:"metrics"`
}

// GoldenMetrics represents the expected metrics from a golden test case.
type GoldenMetrics struct {
	// Exact match
	Compilations int `json:"compilations"`

	// Deterministic floating-point metrics (derived from the virtual clock)
	StreamFPS []float64 `json:"stream_fps"`
	MeanFPS   float64   `json:"mean_fps"`
}

// Durations expands the case into a per-key constant duration table for keys.
func (c GoldenTestCase) Durations(keys []string) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		out[k] = c.DefaultDurationMs
		if d, ok := c.DurationOverridesMs[k]; ok {
			out[k] = d
		}
	}
	return out
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
