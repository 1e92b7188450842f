package sim

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUndefinedStage is returned when an edge names a stage that does not exist.
var ErrUndefinedStage = errors.New("undefined stage")

// StageKind names a stage behaviour.
type StageKind string

const (
	KindPlain         StageKind = "plain"
	KindGPU           StageKind = "gpu"
	KindMutex         StageKind = "mutex"
	KindBuffer        StageKind = "buffer"
	KindCacheSearcher StageKind = "cache_searcher"
	KindFrameSelector StageKind = "frame_selector"
)

// DefaultCompileDistribution is the distribution sampled by the first GPU
// invocation of a run.
const DefaultCompileDistribution = "nn_compilation"

// knownMutexes lists the mutual-exclusion pools every run creates.
var knownMutexes = []string{MutexNNCache, MutexMulticameraTracker}

// Ports returns the number of output ports for the kind, or 0 if unknown.
func (k StageKind) Ports() int {
	switch k {
	case KindPlain, KindGPU, KindMutex, KindBuffer:
		return 1
	case KindCacheSearcher, KindFrameSelector:
		return 2
	default:
		return 0
	}
}

// StageSpec describes one stage of a topology.
// Single-port kinds list successors in Next; router kinds use Ports.
type StageSpec struct {
	Name                string     `yaml:"name"`
	Kind                StageKind  `yaml:"kind"`
	Distribution        string     `yaml:"distribution,omitempty"`         // defaults to Name
	CompileDistribution string     `yaml:"compile_distribution,omitempty"` // gpu only
	Mutex               string     `yaml:"mutex,omitempty"`                // mutex only
	Threshold           int        `yaml:"threshold,omitempty"`            // buffer only
	Stride              int        `yaml:"stride,omitempty"`               // frame_selector only
	Next                []string   `yaml:"next,omitempty"`
	Ports               [][]string `yaml:"ports,omitempty"`
}

// DistributionKey returns the sampler key for the stage's service time.
func (s StageSpec) DistributionKey() string {
	if s.Distribution != "" {
		return s.Distribution
	}
	return s.Name
}

// CompileKey returns the sampler key for a GPU stage's compile time.
func (s StageSpec) CompileKey() string {
	if s.CompileDistribution != "" {
		return s.CompileDistribution
	}
	return DefaultCompileDistribution
}

// successorPorts normalises Next/Ports into one list per output port.
func (s StageSpec) successorPorts() [][]string {
	if s.Kind.Ports() == 1 {
		return [][]string{s.Next}
	}
	ports := make([][]string, s.Kind.Ports())
	copy(ports, s.Ports)
	return ports
}

// Topology is a static description of a pipeline graph.
type Topology struct {
	Entry  string      `yaml:"entry"`
	Stages []StageSpec `yaml:"stages"`
}

// Stage returns the spec for name.
func (t *Topology) Stage(name string) (StageSpec, bool) {
	for _, s := range t.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageSpec{}, false
}

// zeroCost reports whether the stage never samples its service time under mode.
func (s StageSpec) zeroCost(mode CacheMode) bool {
	if !mode.ZeroCostCache() {
		return false
	}
	switch s.Kind {
	case KindCacheSearcher:
		return true
	case KindMutex:
		return s.Mutex == MutexNNCache
	default:
		return false
	}
}

// DistributionKeys returns every sampler key the topology can use, sorted.
func (t *Topology) DistributionKeys() []string {
	return t.DistributionKeysFor(CacheNotActivated)
}

// DistributionKeysFor returns the sampler keys a run in mode draws from,
// sorted. Cache stages that cost nothing under mode need no sampler.
func (t *Topology) DistributionKeysFor(mode CacheMode) []string {
	seen := make(map[string]bool)
	for _, s := range t.Stages {
		if !s.zeroCost(mode) {
			seen[s.DistributionKey()] = true
		}
		if s.Kind == KindGPU {
			seen[s.CompileKey()] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks the topology for build-time errors.
func (t *Topology) Validate() error {
	if len(t.Stages) == 0 {
		return fmt.Errorf("topology has no stages")
	}
	names := make(map[string]bool, len(t.Stages))
	for _, s := range t.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage with empty name")
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate stage %q", s.Name)
		}
		names[s.Name] = true
	}
	if !names[t.Entry] {
		return fmt.Errorf("entry stage %q: %w", t.Entry, ErrUndefinedStage)
	}
	for _, s := range t.Stages {
		if err := s.validate(names); err != nil {
			return fmt.Errorf("stage %q: %w", s.Name, err)
		}
	}
	return nil
}

func (s StageSpec) validate(names map[string]bool) error {
	n := s.Kind.Ports()
	if n == 0 {
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	if n == 1 && len(s.Ports) > 0 {
		return fmt.Errorf("kind %s has a single output; use next, not ports", s.Kind)
	}
	if n > 1 {
		if len(s.Next) > 0 {
			return fmt.Errorf("kind %s routes by port; use ports, not next", s.Kind)
		}
		if len(s.Ports) > n {
			return fmt.Errorf("kind %s has %d ports, got %d", s.Kind, n, len(s.Ports))
		}
	}
	switch s.Kind {
	case KindMutex:
		if !isKnownMutex(s.Mutex) {
			return fmt.Errorf("unknown mutex %q (want one of %v)", s.Mutex, knownMutexes)
		}
	case KindBuffer:
		if s.Threshold < 1 {
			return fmt.Errorf("buffer threshold must be >= 1, got %d", s.Threshold)
		}
	case KindFrameSelector:
		if s.Stride < 1 {
			return fmt.Errorf("frame selector stride must be >= 1, got %d", s.Stride)
		}
	}
	for port, succ := range s.successorPorts() {
		for _, name := range succ {
			if !names[name] {
				return fmt.Errorf("port %d successor %q: %w", port, name, ErrUndefinedStage)
			}
		}
	}
	return nil
}

func isKnownMutex(name string) bool {
	for _, m := range knownMutexes {
		if m == name {
			return true
		}
	}
	return false
}

// ParseTopology decodes a YAML topology with strict field checking.
func ParseTopology(data []byte) (*Topology, error) {
	var topo Topology
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&topo); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	return &topo, nil
}

// LoadTopology reads and validates a YAML topology file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	return ParseTopology(data)
}

// VideoTrackingTopology returns the production multi-camera tracking pipeline.
// With extended set, the gate-detection branch is added and the result join
// waits for three arrivals instead of two.
func VideoTrackingTopology(extended bool) *Topology {
	joinThreshold := 2
	correctorNext := []string{"frame_to_detector", "frame_selector"}
	if extended {
		joinThreshold = 3
		correctorNext = append(correctorNext, "gate_frame_selector")
	}

	topo := &Topology{
		Entry: "decoder",
		Stages: []StageSpec{
			{Name: "decoder", Kind: KindPlain, Next: []string{"frame_corrector"}},
			// no dedicated traces exist for the corrector
			{Name: "frame_corrector", Kind: KindPlain, Distribution: "frame_to_detector", Next: correctorNext},
			{Name: "frame_to_detector", Kind: KindPlain, Next: []string{"detector_result_join"}},
			{Name: "frame_selector", Kind: KindFrameSelector, Stride: 1,
				Ports: [][]string{{"nn_cache_searcher"}, {"rebroadcaster"}}},
			{Name: "nn_cache_searcher", Kind: KindCacheSearcher,
				Ports: [][]string{{"nn_inputs_preparator"}, {"singlecamera_tracker"}}},
			{Name: "nn_inputs_preparator", Kind: KindPlain, Next: []string{"nn_inferencer"}},
			{Name: "nn_inferencer", Kind: KindGPU, Next: []string{"nn_postprocessor"}},
			{Name: "nn_postprocessor", Kind: KindPlain, Next: []string{"nn_cache_writer"}},
			{Name: "nn_cache_writer", Kind: KindMutex, Mutex: MutexNNCache, Next: []string{"singlecamera_tracker"}},
			{Name: "singlecamera_tracker", Kind: KindPlain, Next: []string{"associator"}},
			{Name: "associator", Kind: KindPlain, Next: []string{"geometric_properties"}},
			{Name: "geometric_properties", Kind: KindPlain, Next: []string{"geometry_filter"}},
			{Name: "geometry_filter", Kind: KindPlain, Next: []string{"multicamera_tracker"}},
			{Name: "multicamera_tracker", Kind: KindMutex, Mutex: MutexMulticameraTracker, Next: []string{"tag_integrator"}},
			{Name: "tag_integrator", Kind: KindPlain, Next: []string{"rebroadcaster"}},
			{Name: "rebroadcaster", Kind: KindPlain, Next: []string{"detector_result_join"}},
			{Name: "detector_result_join", Kind: KindBuffer, Threshold: joinThreshold},
		},
	}
	if extended {
		topo.Stages = append(topo.Stages,
			StageSpec{Name: "gate_frame_selector", Kind: KindFrameSelector, Stride: 1,
				Ports: [][]string{{"gate_state_detector"}, {"gate_rebroadcaster"}}},
			StageSpec{Name: "gate_state_detector", Kind: KindPlain, Next: []string{"gate_rebroadcaster"}},
			StageSpec{Name: "gate_rebroadcaster", Kind: KindPlain, Next: []string{"detector_result_join"}},
		)
	}
	return topo
}
