package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/tracking-sim/sim/trace"
)

func TestChain_ThreeStages_LatencyIsSumOfDurations(t *testing.T) {
	// GIVEN a 3-stage chain with d=2ms, one core and one stream
	topo := chainTopology(3)
	f := newRun(t, topo, 1, CacheNotActivated, constantSamplers(topo, 2), 1, 10, 0)

	// WHEN the run completes
	f.run(t)

	// THEN each frame takes 6ms and the stream runs at 1000/6 FPS
	st := f.streams[0]
	assert.Equal(t, 60.0, st.Elapsed())
	assert.InDelta(t, 1000.0/6, st.FPS(), 1e-9)
	assert.Equal(t, 10, st.Graph().Stage("s2").Invocations())
}

func TestBufferStage_ForwardsOncePerThreshold(t *testing.T) {
	// GIVEN a fan-out into a join that waits for three arrivals
	topo := &Topology{
		Entry: "fan",
		Stages: []StageSpec{
			{Name: "fan", Kind: KindPlain, Next: []string{"a", "b", "c"}},
			{Name: "a", Kind: KindPlain, Next: []string{"join"}},
			{Name: "b", Kind: KindPlain, Next: []string{"join"}},
			{Name: "c", Kind: KindPlain, Next: []string{"join"}},
			{Name: "join", Kind: KindBuffer, Threshold: 3},
		},
	}
	const frames = 4
	f := newRun(t, topo, 4, CacheNotActivated, constantSamplers(topo, 1), 1, frames, 0)

	// WHEN the run completes
	f.run(t)

	// THEN the join served 3 arrivals per frame, fired once per frame and reset
	join := f.streams[0].Graph().Stage("join").(*BufferStage)
	assert.Equal(t, 3*frames, join.Invocations())
	assert.Equal(t, frames, join.Fired())
	assert.Equal(t, 0, join.Count())
	assert.Equal(t, 3, join.Threshold())

	absorbed := 0
	for _, r := range stageRecords(f.sim.Trace(), "join") {
		if r.Outcome == trace.OutcomeAbsorbed {
			absorbed++
			assert.Equal(t, r.Acquired, r.End, "absorbed arrivals take no time")
		}
	}
	assert.Equal(t, 2*frames, absorbed)
	// fan 1ms + parallel branch 1ms + join 1ms
	assert.Equal(t, 3.0*frames, f.streams[0].Elapsed())
}

func TestStage_TwoTerminalBranches_FirstCompletionEndsFrame(t *testing.T) {
	// GIVEN a fan-out whose two branches are both terminal
	topo := &Topology{
		Entry: "a",
		Stages: []StageSpec{
			{Name: "a", Kind: KindPlain, Next: []string{"b", "c"}},
			{Name: "b", Kind: KindPlain},
			{Name: "c", Kind: KindPlain},
		},
	}
	require.NoError(t, topo.Validate())
	f := newRun(t, topo, 2, CacheNotActivated, constantSamplers(topo, 1), 1, 2, 0)

	// WHEN the run completes
	f.run(t)

	// THEN both branches served every frame and the stream paced on the first completion
	g := f.streams[0].Graph()
	assert.Equal(t, 2, g.Stage("b").Invocations())
	assert.Equal(t, 2, g.Stage("c").Invocations())
	assert.Equal(t, 4.0, f.streams[0].Elapsed())
}

func TestGPUStage_CompilesExactlyOncePerRun(t *testing.T) {
	topo := &Topology{
		Entry: "prep",
		Stages: []StageSpec{
			{Name: "prep", Kind: KindPlain, Next: []string{"infer"}},
			{Name: "infer", Kind: KindGPU},
		},
	}
	for _, tc := range []struct{ streams, frames int }{{1, 1}, {1, 5}, {3, 1}, {4, 6}} {
		t.Run(fmt.Sprintf("streams=%d/frames=%d", tc.streams, tc.frames), func(t *testing.T) {
			samplers := map[string]Sampler{
				"prep":                     constant(1),
				"infer":                    constant(2),
				DefaultCompileDistribution: constant(50),
			}
			f := newRun(t, topo, 2, CacheNotActivated, samplers, tc.streams, tc.frames, 0)
			f.run(t)

			assert.Equal(t, 1, f.sim.Compilations())
			recs := stageRecords(f.sim.Trace(), "infer")
			require.Len(t, recs, tc.streams*tc.frames)
			long := 0
			for _, r := range recs {
				if r.End-r.Acquired == 50 {
					long++
				}
			}
			assert.Equal(t, 1, long, "exactly one invocation paid the compile time")
			assert.Equal(t, 1, f.sim.GPU.Peak())
		})
	}
}

func TestGPUStage_SingleStream_CompileThenRegular(t *testing.T) {
	topo := &Topology{Entry: "infer", Stages: []StageSpec{{Name: "infer", Kind: KindGPU}}}
	samplers := map[string]Sampler{"infer": constant(1), DefaultCompileDistribution: constant(10)}
	f := newRun(t, topo, 1, CacheNotActivated, samplers, 1, 3, 0)
	f.run(t)
	assert.Equal(t, 12.0, f.streams[0].Elapsed())
}

func cacheTopology() *Topology {
	return &Topology{
		Entry: "search",
		Stages: []StageSpec{
			{Name: "search", Kind: KindCacheSearcher, Ports: [][]string{{"miss"}, {"hit"}}},
			{Name: "miss", Kind: KindPlain},
			{Name: "hit", Kind: KindPlain},
		},
	}
}

func TestCacheSearcherStage_PortDependsOnlyOnMode(t *testing.T) {
	const frames = 4
	cases := []struct {
		mode    CacheMode
		routed  []int
		elapsed float64
	}{
		{CacheNotActivated, []int{frames, 0}, frames * 6},
		{CacheRealFull, []int{0, frames}, frames * 6},
		{CacheIdealFull, []int{0, frames}, frames * 1},
	}
	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			samplers := map[string]Sampler{"search": constant(5), "miss": constant(1), "hit": constant(1)}
			f := newRun(t, cacheTopology(), 2, tc.mode, samplers, 1, frames, 0)
			f.run(t)

			g := f.streams[0].Graph()
			assert.Equal(t, tc.routed, g.Stage("search").Routed())
			assert.Equal(t, tc.elapsed, f.streams[0].Elapsed())
			mu, ok := f.sim.Mutex(MutexNNCache)
			require.True(t, ok)
			assert.Equal(t, 1, mu.Peak())
		})
	}
}

func TestFrameSelectorStage_StrideRoutesEverySthFrame(t *testing.T) {
	topo := &Topology{
		Entry: "select",
		Stages: []StageSpec{
			{Name: "select", Kind: KindFrameSelector, Stride: 3, Ports: [][]string{{"detect"}, {"skip"}}},
			{Name: "detect", Kind: KindPlain},
			{Name: "skip", Kind: KindPlain},
		},
	}
	f := newRun(t, topo, 1, CacheNotActivated, constantSamplers(topo, 1), 1, 7, 0)
	f.run(t)

	sel := f.streams[0].Graph().Stage("select").(*FrameSelectorStage)
	assert.Equal(t, 7, sel.Frames())
	assert.Equal(t, []int{2, 5}, sel.Routed())

	var selected []int
	for _, r := range stageRecords(f.sim.Trace(), "select") {
		if r.Port == 0 {
			selected = append(selected, r.Frame)
		}
	}
	assert.Equal(t, []int{3, 6}, selected)
}

func TestStage_ForwardsBeforeReleasingResources(t *testing.T) {
	// GIVEN one core, stage A (1ms) feeding B, and a competitor that queues
	// for the core at t=0.5 while A holds it
	topo := chainTopology(2)
	f := newRun(t, topo, 1, CacheNotActivated, constantSamplers(topo, 1), 1, 1, 0)
	s := f.sim
	waitingAtGrant := -1
	s.Sched.Schedule(0.5, func() {
		s.CPU.Acquire(func() {
			waitingAtGrant = s.CPU.Waiting()
			s.CPU.Release()
		})
	})

	// WHEN A finishes at t=1
	f.run(t)

	// THEN B had already queued for the core when the competitor got it,
	// i.e. A forwarded its task before releasing
	assert.Equal(t, 1, waitingAtGrant)
	assert.Equal(t, 2.0, f.streams[0].Elapsed())
	assert.Equal(t, 1, s.CPU.Peak())
}

func TestMutexStage_CriticalSectionsNeverOverlap(t *testing.T) {
	// GIVEN 2 cores, 2 streams and a shared mutex stage
	topo := &Topology{
		Entry: "pre",
		Stages: []StageSpec{
			{Name: "pre", Kind: KindPlain, Next: []string{"crit"}},
			{Name: "crit", Kind: KindMutex, Mutex: MutexMulticameraTracker, Next: []string{"post"}},
			{Name: "post", Kind: KindPlain},
		},
	}
	samplers := map[string]Sampler{"pre": constant(1), "crit": constant(3), "post": constant(1)}
	f := newRun(t, topo, 2, CacheNotActivated, samplers, 2, 5, 0)

	// WHEN the run completes
	f.run(t)

	// THEN the critical sections of both streams are disjoint in time
	recs := stageRecords(f.sim.Trace(), "crit")
	require.Len(t, recs, 10)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i].Acquired, recs[i-1].End,
			"sections %d and %d overlap", i-1, i)
	}
	streamsSeen := map[int]bool{}
	for _, r := range recs {
		streamsSeen[r.Stream] = true
	}
	assert.Len(t, streamsSeen, 2)

	// AND no pool ever exceeded its capacity
	for _, r := range f.sim.Trace().Resources {
		assert.LessOrEqual(t, r.Held, r.Capacity, "%s at %v", r.Resource, r.Clock)
	}
	assert.LessOrEqual(t, f.sim.CPU.Peak(), 2)
}

func TestStage_StartWithoutHandler_Panics(t *testing.T) {
	b := &baseStage{name: "bare"}
	assert.Panics(t, b.Start)
}
