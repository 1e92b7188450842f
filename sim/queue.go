// Implements the Inbox, which holds tasks waiting for a stage to pick them up.
// Tasks are enqueued by the predecessor stage or the stream driver.

package sim

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Inbox is an unbounded FIFO of tasks with a FIFO of suspended receivers.
// At most one of the two lists is non-empty at any time.
type Inbox struct {
	queue     []*Task
	receivers []func(*Task)
	sched     *Scheduler
}

// NewInbox creates an empty inbox bound to a scheduler.
func NewInbox(sched *Scheduler) *Inbox {
	return &Inbox{sched: sched}
}

// Put adds a task to the back of the inbox. A suspended receiver, if any,
// is resumed with it at the current time.
func (in *Inbox) Put(t *Task) {
	if t == nil {
		panic("Put: task must not be nil")
	}
	if len(in.receivers) > 0 {
		recv := in.receivers[0]
		in.receivers[0] = nil
		in.receivers = in.receivers[1:]
		in.sched.Schedule(0, func() { recv(t) })
		return
	}
	in.queue = append(in.queue, t)
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.Debugf("[t %.3fms] %v queued, inbox %v", in.sched.Now(), t, in)
	}
}

// Get takes the front task. If the inbox is empty, fn is suspended until
// the next Put; otherwise fn is resumed at the current time.
func (in *Inbox) Get(fn func(*Task)) {
	if fn == nil {
		panic("Get: fn must not be nil")
	}
	if len(in.queue) == 0 {
		in.receivers = append(in.receivers, fn)
		return
	}
	t := in.queue[0]
	in.queue[0] = nil
	in.queue = in.queue[1:]
	in.sched.Schedule(0, func() { fn(t) })
}

// Len returns the number of queued tasks.
func (in *Inbox) Len() int {
	return len(in.queue)
}

// Receivers returns the number of suspended receivers.
func (in *Inbox) Receivers() int {
	return len(in.receivers)
}

func (in *Inbox) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, val := range in.queue {
		sb.WriteString(fmt.Sprint(val))
		if i < len(in.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
