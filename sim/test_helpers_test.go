package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inference-sim/tracking-sim/sim/trace"
)

// constant returns a sampler that always yields d.
func constant(d float64) Sampler {
	return SamplerFunc(func(*rand.Rand) float64 { return d })
}

// constantSamplers maps every distribution key of topo to d.
func constantSamplers(topo *Topology, d float64) map[string]Sampler {
	out := make(map[string]Sampler)
	for _, k := range topo.DistributionKeys() {
		out[k] = constant(d)
	}
	return out
}

// runFixture is a fully wired run: one simulator, one graph and stream per index.
type runFixture struct {
	sim     *Simulator
	streams []*Stream
}

func newRun(t *testing.T, topo *Topology, cores int, mode CacheMode, samplers map[string]Sampler, streams, frames int, seed int64) *runFixture {
	t.Helper()
	cfg := NewConfig(cores, mode, samplers, trace.TraceConfig{Level: trace.TraceLevelStages})
	s, err := NewSimulator(cfg, NewSimulationKey(seed))
	require.NoError(t, err)
	f := &runFixture{sim: s}
	for i := 0; i < streams; i++ {
		g, err := NewGraph(s, topo, i)
		require.NoError(t, err)
		st, err := NewStream(s, g, i, frames)
		require.NoError(t, err)
		f.streams = append(f.streams, st)
	}
	return f
}

func (f *runFixture) run(t *testing.T) {
	t.Helper()
	for _, st := range f.streams {
		st.Start()
	}
	f.sim.Run()
	for _, st := range f.streams {
		require.True(t, st.Finished(), "stream %d stalled at %d frames", st.ID(), st.Frames())
	}
}

// stageRecords returns the trace records of one stage in completion order.
func stageRecords(tr *trace.SimulationTrace, name string) []trace.StageRecord {
	var out []trace.StageRecord
	for _, r := range tr.Stages {
		if r.Stage == name {
			out = append(out, r)
		}
	}
	return out
}

// chainTopology builds a linear pipeline of plain stages s0 → s1 → ... .
func chainTopology(n int) *Topology {
	topo := &Topology{Entry: "s0"}
	for i := 0; i < n; i++ {
		spec := StageSpec{Name: stageName(i), Kind: KindPlain}
		if i < n-1 {
			spec.Next = []string{stageName(i + 1)}
		}
		topo.Stages = append(topo.Stages, spec)
	}
	return topo
}

func stageName(i int) string {
	return "s" + string(rune('0'+i))
}
