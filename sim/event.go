package sim

// Event is a continuation scheduled to run at a point in virtual time.
type Event struct {
	time float64 // virtual time in ms
	seq  uint64  // insertion order, breaks timestamp ties
	fn   func()
}

// Timestamp returns the virtual time the event fires at.
func (e *Event) Timestamp() float64 {
	return e.time
}

// Seq returns the event's insertion ordinal.
func (e *Event) Seq() uint64 {
	return e.seq
}

// EventQueue implements heap.Interface and orders events by timestamp,
// then by insertion order.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type EventQueue []*Event

func (eq EventQueue) Len() int { return len(eq) }
func (eq EventQueue) Less(i, j int) bool {
	if eq[i].time != eq[j].time {
		return eq[i].time < eq[j].time
	}
	return eq[i].seq < eq[j].seq
}
func (eq EventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(*Event))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*eq = old[0 : n-1]
	return item
}
