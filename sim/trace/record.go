// Package trace provides execution-trace recording for pipeline contention analysis.
// This package has no dependencies on sim/ or sim/runner/. It stores pure data types.
package trace

// Outcome describes what a stage did with a task after its service time.
type Outcome string

const (
	// OutcomeForwarded means the task was pushed to at least one successor.
	OutcomeForwarded Outcome = "forwarded"
	// OutcomeSignalled means the chosen port had no successors and the frame completed.
	OutcomeSignalled Outcome = "signalled"
	// OutcomeAbsorbed means a buffering stage counted the arrival without forwarding.
	OutcomeAbsorbed Outcome = "absorbed"
)

// StageRecord captures one stage invocation.
type StageRecord struct {
	Order    uint64 // position in the combined trace
	Stage    string
	Stream   int
	Frame    int
	Acquired float64 // when the last required resource was granted (ms)
	End      float64 // when the service time elapsed (ms)
	Port     int
	Outcome  Outcome
}

// ResourceOp is the kind of pool transition recorded.
type ResourceOp string

const (
	OpGrant   ResourceOp = "grant"
	OpRelease ResourceOp = "release"
	OpHandOff ResourceOp = "handoff" // released unit passed directly to a waiter
)

// ResourceRecord captures a pool state change.
type ResourceRecord struct {
	Order    uint64
	Resource string
	Clock    float64
	Op       ResourceOp
	Held     int
	Capacity int
	Waiting  int
}
