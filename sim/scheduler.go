package sim

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Scheduler owns the virtual clock and the pending event queue.
// It is not safe for concurrent use; the whole simulation runs on one goroutine.
type Scheduler struct {
	clock    float64
	queue    EventQueue
	nextSeq  uint64
	executed uint64
}

// NewScheduler returns a scheduler with the clock at zero and no pending events.
func NewScheduler() *Scheduler {
	s := &Scheduler{queue: make(EventQueue, 0)}
	heap.Init(&s.queue)
	return s
}

// Now returns the current virtual time in ms.
func (s *Scheduler) Now() float64 {
	return s.clock
}

// Pending returns the number of events waiting to fire.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Executed returns the number of events run so far.
func (s *Scheduler) Executed() uint64 {
	return s.executed
}

// Schedule enqueues fn to run delay ms from now.
// Panics if delay is negative, NaN or infinite, or if fn is nil.
func (s *Scheduler) Schedule(delay float64, fn func()) *Event {
	if fn == nil {
		panic("Schedule: fn must not be nil")
	}
	if delay < 0 || math.IsNaN(delay) || math.IsInf(delay, 0) {
		panic(fmt.Sprintf("Schedule: invalid delay %v at clock %v", delay, s.clock))
	}
	s.nextSeq++
	ev := &Event{time: s.clock + delay, seq: s.nextSeq, fn: fn}
	heap.Push(&s.queue, ev)
	return ev
}

// RunUntilIdle pops events in (timestamp, insertion) order and runs them
// until the queue is empty.
func (s *Scheduler) RunUntilIdle() {
	for s.queue.Len() > 0 {
		ev := heap.Pop(&s.queue).(*Event)
		if ev.time < s.clock {
			panic(fmt.Sprintf("Clock went backwards: %v < %v", ev.time, s.clock))
		}
		s.clock = ev.time
		s.executed++
		logrus.Tracef("[t %.3fms] event #%d", s.clock, ev.seq)
		ev.fn()
	}
	logrus.Debugf("[t %.3fms] event queue drained after %d events", s.clock, s.executed)
}
