package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/tracking-sim/sim/trace"
)

// Stage is one pipeline processing step. Each stage serves one task at a
// time: it takes a task from its inbox, holds its resources for a sampled
// duration, forwards the task (or completes the frame) and only then
// releases its resources and takes the next task.
type Stage interface {
	Name() string
	Kind() StageKind
	Inbox() *Inbox
	// Invocations returns the number of tasks the stage has served.
	Invocations() int
	// Routed returns how many tasks left through each output port.
	Routed() []int
	// Start suspends the stage on its inbox.
	Start()

	connect(port int, next Stage)
}

// baseStage carries the fields and helpers shared by every variant.
type baseStage struct {
	name        string
	kind        StageKind
	sim         *Simulator
	duration    DurationFunc
	inbox       *Inbox
	ports       [][]Stage
	routed      []int
	invocations int
	handle      func(*Task)
}

func newBaseStage(s *Simulator, spec StageSpec, duration DurationFunc) baseStage {
	n := spec.Kind.Ports()
	return baseStage{
		name:     spec.Name,
		kind:     spec.Kind,
		sim:      s,
		duration: duration,
		inbox:    NewInbox(s.Sched),
		ports:    make([][]Stage, n),
		routed:   make([]int, n),
	}
}

func (b *baseStage) Name() string     { return b.name }
func (b *baseStage) Kind() StageKind  { return b.kind }
func (b *baseStage) Inbox() *Inbox    { return b.inbox }
func (b *baseStage) Invocations() int { return b.invocations }

func (b *baseStage) Routed() []int {
	out := make([]int, len(b.routed))
	copy(out, b.routed)
	return out
}

func (b *baseStage) Start() {
	if b.handle == nil {
		panic(fmt.Sprintf("stage %s: no handler installed", b.name))
	}
	b.next()
}

func (b *baseStage) connect(port int, next Stage) {
	b.ports[port] = append(b.ports[port], next)
}

// next suspends the stage on its inbox until the next task arrives.
func (b *baseStage) next() {
	b.inbox.Get(b.handle)
}

// wait suspends for d ms, then resumes fn.
func (b *baseStage) wait(d float64, fn func()) {
	b.sim.Sched.Schedule(d, fn)
}

// forward pushes t to every successor on port, or fulfils the task's
// completion signal when the port has none.
func (b *baseStage) forward(port int, t *Task) trace.Outcome {
	b.routed[port]++
	succ := b.ports[port]
	if len(succ) == 0 {
		logrus.Debugf("[t %.3fms] %s: %v complete", b.sim.Now(), b.name, t)
		t.Done.Fulfil()
		return trace.OutcomeSignalled
	}
	for _, n := range succ {
		n.Inbox().Put(t)
	}
	logrus.Debugf("[t %.3fms] %s: %v -> port %d (%d successors)", b.sim.Now(), b.name, t, port, len(succ))
	return trace.OutcomeForwarded
}

func (b *baseStage) record(t *Task, acquired float64, port int, outcome trace.Outcome) {
	b.invocations++
	b.sim.trace.RecordStage(trace.StageRecord{
		Stage:    b.name,
		Stream:   t.Stream,
		Frame:    t.Frame,
		Acquired: acquired,
		End:      b.sim.Now(),
		Port:     port,
		Outcome:  outcome,
	})
}

// PlainStage holds one CPU core for its service time.
type PlainStage struct {
	baseStage
}

func newPlainStage(s *Simulator, spec StageSpec, duration DurationFunc) *PlainStage {
	st := &PlainStage{baseStage: newBaseStage(s, spec, duration)}
	st.handle = st.serve
	return st
}

func (st *PlainStage) serve(t *Task) {
	cpu := st.sim.CPU
	cpu.Acquire(func() {
		acquired := st.sim.Now()
		st.wait(st.duration(), func() {
			outcome := st.forward(0, t)
			st.record(t, acquired, 0, outcome)
			cpu.Release()
			st.next()
		})
	})
}

// GPUStage briefly takes a CPU core to dispatch, then holds the GPU.
// The first GPU invocation of a run pays the model compile time instead of
// the regular service time.
type GPUStage struct {
	baseStage
	compile DurationFunc
}

func newGPUStage(s *Simulator, spec StageSpec, duration, compile DurationFunc) *GPUStage {
	st := &GPUStage{baseStage: newBaseStage(s, spec, duration), compile: compile}
	st.handle = st.serve
	return st
}

func (st *GPUStage) serve(t *Task) {
	cpu, gpu := st.sim.CPU, st.sim.GPU
	cpu.Acquire(func() {
		cpu.Release()
		gpu.Acquire(func() {
			acquired := st.sim.Now()
			var d float64
			if st.sim.claimCompile() {
				d = st.compile()
				logrus.Infof("[t %.3fms] %s: compiling model (%.3fms)", acquired, st.name, d)
			} else {
				d = st.duration()
			}
			st.wait(d, func() {
				outcome := st.forward(0, t)
				st.record(t, acquired, 0, outcome)
				gpu.Release()
				st.next()
			})
		})
	})
}

// MutexStage holds a CPU core and a named critical section.
type MutexStage struct {
	baseStage
	mutex *Resource
}

func newMutexStage(s *Simulator, spec StageSpec, duration DurationFunc, mutex *Resource) *MutexStage {
	st := &MutexStage{baseStage: newBaseStage(s, spec, duration), mutex: mutex}
	st.handle = st.serve
	return st
}

// Mutex returns the critical section this stage guards.
func (st *MutexStage) Mutex() *Resource { return st.mutex }

func (st *MutexStage) serve(t *Task) {
	cpu, mu := st.sim.CPU, st.mutex
	cpu.Acquire(func() {
		mu.Acquire(func() {
			acquired := st.sim.Now()
			st.wait(st.duration(), func() {
				outcome := st.forward(0, t)
				st.record(t, acquired, 0, outcome)
				mu.Release()
				cpu.Release()
				st.next()
			})
		})
	})
}

// BufferStage is a join barrier: every threshold-th arrival costs one
// service time and is forwarded; the arrivals in between are absorbed.
type BufferStage struct {
	baseStage
	threshold int
	count     int
	fired     int
}

func newBufferStage(s *Simulator, spec StageSpec, duration DurationFunc) *BufferStage {
	st := &BufferStage{baseStage: newBaseStage(s, spec, duration), threshold: spec.Threshold}
	st.handle = st.serve
	return st
}

// Threshold returns the number of arrivals per forward.
func (st *BufferStage) Threshold() int { return st.threshold }

// Count returns the arrivals since the last forward.
func (st *BufferStage) Count() int { return st.count }

// Fired returns how many times the barrier has forwarded.
func (st *BufferStage) Fired() int { return st.fired }

func (st *BufferStage) serve(t *Task) {
	cpu := st.sim.CPU
	cpu.Acquire(func() {
		acquired := st.sim.Now()
		st.count++
		if st.count < st.threshold {
			st.record(t, acquired, 0, trace.OutcomeAbsorbed)
			cpu.Release()
			st.next()
			return
		}
		st.wait(st.duration(), func() {
			outcome := st.forward(0, t)
			st.count = 0
			st.fired++
			st.record(t, acquired, 0, outcome)
			cpu.Release()
			st.next()
		})
	})
}

// CacheSearcherStage looks a frame up in the NN result cache under the
// nn_cache mutex. The run's cache mode decides the route: port 0 sends the
// frame to inference, port 1 skips it.
type CacheSearcherStage struct {
	baseStage
	mutex *Resource
}

func newCacheSearcherStage(s *Simulator, spec StageSpec, duration DurationFunc, mutex *Resource) *CacheSearcherStage {
	st := &CacheSearcherStage{baseStage: newBaseStage(s, spec, duration), mutex: mutex}
	st.handle = st.serve
	return st
}

func (st *CacheSearcherStage) serve(t *Task) {
	cpu, mu := st.sim.CPU, st.mutex
	cpu.Acquire(func() {
		mu.Acquire(func() {
			acquired := st.sim.Now()
			st.wait(st.duration(), func() {
				port := st.sim.CacheMode().SearcherPort()
				outcome := st.forward(port, t)
				st.record(t, acquired, port, outcome)
				mu.Release()
				cpu.Release()
				st.next()
			})
		})
	})
}

// FrameSelectorStage sends every stride-th frame (1-indexed) to port 0 and
// the rest to port 1.
type FrameSelectorStage struct {
	baseStage
	stride int
	frames int
}

func newFrameSelectorStage(s *Simulator, spec StageSpec, duration DurationFunc) *FrameSelectorStage {
	st := &FrameSelectorStage{baseStage: newBaseStage(s, spec, duration), stride: spec.Stride}
	st.handle = st.serve
	return st
}

// Frames returns the number of frames seen so far.
func (st *FrameSelectorStage) Frames() int { return st.frames }

func (st *FrameSelectorStage) serve(t *Task) {
	cpu := st.sim.CPU
	cpu.Acquire(func() {
		acquired := st.sim.Now()
		st.frames++
		port := 1
		if st.frames%st.stride == 0 {
			port = 0
		}
		st.wait(st.duration(), func() {
			outcome := st.forward(port, t)
			st.record(t, acquired, port, outcome)
			cpu.Release()
			st.next()
		})
	})
}
