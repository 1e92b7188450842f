package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Task is the token for one frame in flight through a pipeline graph.
type Task struct {
	Stream int // owning stream index
	Frame  int // 1-based frame number within the stream
	Done   *Signal
}

// NewTask creates a task with a fresh completion signal.
func NewTask(sched *Scheduler, stream, frame int) *Task {
	return &Task{Stream: stream, Frame: frame, Done: NewSignal(sched)}
}

func (t *Task) String() string {
	return fmt.Sprintf("s%d/f%d", t.Stream, t.Frame)
}

// Signal is a one-shot completion flag a stream waits on.
type Signal struct {
	fulfilled bool
	at        float64
	waiters   []func()
	sched     *Scheduler
}

// NewSignal creates an unfulfilled signal.
func NewSignal(sched *Scheduler) *Signal {
	return &Signal{sched: sched}
}

// Fulfil marks the signal complete and resumes every waiter at the current time.
// The first completion wins; later calls are ignored.
func (s *Signal) Fulfil() {
	if s.fulfilled {
		logrus.Debugf("[t %.3fms] signal already fulfilled at %.3fms, ignoring", s.sched.Now(), s.at)
		return
	}
	s.fulfilled = true
	s.at = s.sched.Now()
	for _, fn := range s.waiters {
		s.sched.Schedule(0, fn)
	}
	s.waiters = nil
}

// Wait resumes fn once the signal is fulfilled; immediately (at the current
// time) if it already is.
func (s *Signal) Wait(fn func()) {
	if fn == nil {
		panic("Wait: fn must not be nil")
	}
	if s.fulfilled {
		s.sched.Schedule(0, fn)
		return
	}
	s.waiters = append(s.waiters, fn)
}

// Fulfilled reports whether the signal has fired.
func (s *Signal) Fulfilled() bool {
	return s.fulfilled
}

// FulfilledAt returns the virtual time of fulfilment (0 if pending).
func (s *Signal) FulfilledAt() float64 {
	return s.at
}
