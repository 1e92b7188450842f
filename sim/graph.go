package sim

import "fmt"

// Graph is one stream's instance of a topology. Stages are private to the
// graph; the resource pools they contend on belong to the Simulator.
type Graph struct {
	stream int
	entry  Stage
	stages []Stage
	byName map[string]Stage
}

// NewGraph validates topo and instantiates its stages for one stream.
// Every distribution key the topology names must have a sampler.
func NewGraph(s *Simulator, topo *Topology, stream int) (*Graph, error) {
	if topo == nil {
		return nil, fmt.Errorf("topology must not be nil")
	}
	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	g := &Graph{
		stream: stream,
		stages: make([]Stage, 0, len(topo.Stages)),
		byName: make(map[string]Stage, len(topo.Stages)),
	}
	for _, spec := range topo.Stages {
		st, err := newStage(s, spec)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", spec.Name, err)
		}
		g.stages = append(g.stages, st)
		g.byName[spec.Name] = st
	}
	for _, spec := range topo.Stages {
		from := g.byName[spec.Name]
		for port, succ := range spec.successorPorts() {
			for _, name := range succ {
				from.connect(port, g.byName[name])
			}
		}
	}
	g.entry = g.byName[topo.Entry]
	return g, nil
}

func newStage(s *Simulator, spec StageSpec) (Stage, error) {
	duration := DurationFunc(zeroDuration)
	if !spec.zeroCost(s.CacheMode()) {
		var err error
		if duration, err = s.DurationFunc(spec.DistributionKey()); err != nil {
			return nil, err
		}
	}
	switch spec.Kind {
	case KindPlain:
		return newPlainStage(s, spec, duration), nil
	case KindGPU:
		compile, err := s.DurationFunc(spec.CompileKey())
		if err != nil {
			return nil, fmt.Errorf("compile time: %w", err)
		}
		return newGPUStage(s, spec, duration, compile), nil
	case KindMutex:
		mu, ok := s.Mutex(spec.Mutex)
		if !ok {
			return nil, fmt.Errorf("unknown mutex %q", spec.Mutex)
		}
		return newMutexStage(s, spec, duration, mu), nil
	case KindBuffer:
		return newBufferStage(s, spec, duration), nil
	case KindCacheSearcher:
		mu, _ := s.Mutex(MutexNNCache)
		return newCacheSearcherStage(s, spec, duration, mu), nil
	case KindFrameSelector:
		return newFrameSelectorStage(s, spec, duration), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", spec.Kind)
	}
}

// Stream returns the index of the stream that owns the graph.
func (g *Graph) Stream() int { return g.stream }

// Entry returns the stage new frames are injected into.
func (g *Graph) Entry() Stage { return g.entry }

// Stage returns the named stage, or nil.
func (g *Graph) Stage(name string) Stage { return g.byName[name] }

// Stages returns the stages in topology order.
func (g *Graph) Stages() []Stage { return g.stages }

// Len returns the number of stages.
func (g *Graph) Len() int { return len(g.stages) }

// Start suspends every stage on its inbox.
func (g *Graph) Start() {
	for _, st := range g.stages {
		st.Start()
	}
}
