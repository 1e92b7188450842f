package sim

import (
	"fmt"

	"github.com/inference-sim/tracking-sim/sim/trace"
)

// Resource names used by the run-scoped pools.
const (
	ResourceCPU             = "cpu"
	ResourceGPU             = "gpu"
	MutexNNCache            = "nn_cache"
	MutexMulticameraTracker = "multicamera_tracker"
)

// Resource is a capacity-limited pool with a FIFO wait list.
// Counted pools (CPU cores, GPU) and mutual-exclusion sections (capacity 1)
// share this type.
//
// Every Acquire must be paired with exactly one Release by the same stage,
// issued only after the stage has forwarded its task downstream.
type Resource struct {
	name     string
	capacity int
	held     int
	peak     int
	waiters  []func()
	sched    *Scheduler
	trace    *trace.SimulationTrace
}

// NewResource creates a pool with the given capacity.
func NewResource(sched *Scheduler, name string, capacity int) (*Resource, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("resource %q: capacity must be >= 1, got %d", name, capacity)
	}
	if sched == nil {
		return nil, fmt.Errorf("resource %q: scheduler must not be nil", name)
	}
	return &Resource{name: name, capacity: capacity, sched: sched}, nil
}

// Name returns the pool name.
func (r *Resource) Name() string { return r.name }

// Capacity returns the fixed number of units.
func (r *Resource) Capacity() int { return r.capacity }

// Held returns the number of units currently granted.
func (r *Resource) Held() int { return r.held }

// Peak returns the highest held count observed.
func (r *Resource) Peak() int { return r.peak }

// Waiting returns the number of queued requesters.
func (r *Resource) Waiting() int { return len(r.waiters) }

// Acquire requests one unit. If one is free it is taken now and fn is
// resumed at the current time; otherwise fn joins the back of the wait list.
func (r *Resource) Acquire(fn func()) {
	if fn == nil {
		panic(fmt.Sprintf("Acquire(%s): fn must not be nil", r.name))
	}
	if r.held < r.capacity {
		r.grant()
		r.sched.Schedule(0, fn)
		return
	}
	r.waiters = append(r.waiters, fn)
}

// Release frees one unit. When requesters are queued the unit passes
// straight to the front one, so the held count does not drop.
// Panics when nothing is held.
func (r *Resource) Release() {
	if r.held == 0 {
		panic(fmt.Sprintf("Release(%s): no units held", r.name))
	}
	if len(r.waiters) == 0 {
		r.held--
		r.record(trace.OpRelease)
		return
	}
	next := r.waiters[0]
	r.waiters[0] = nil
	r.waiters = r.waiters[1:]
	r.record(trace.OpHandOff)
	r.sched.Schedule(0, next)
}

func (r *Resource) grant() {
	r.held++
	if r.held > r.capacity {
		panic(fmt.Sprintf("resource %s over-allocated: held %d > capacity %d", r.name, r.held, r.capacity))
	}
	if r.held > r.peak {
		r.peak = r.held
	}
	r.record(trace.OpGrant)
}

func (r *Resource) record(op trace.ResourceOp) {
	if r.trace == nil {
		return
	}
	r.trace.RecordResource(trace.ResourceRecord{
		Resource: r.name,
		Clock:    r.sched.Now(),
		Op:       op,
		Held:     r.held,
		Capacity: r.capacity,
		Waiting:  len(r.waiters),
	})
}
