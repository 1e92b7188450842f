// Package sim provides the discrete-event simulation engine for the tracking
// pipeline throughput model.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go / scheduler.go: virtual clock and the time-ordered event loop
//   - resource.go: capacity-limited FIFO pools (CPU cores, GPU, mutexes)
//   - stage.go: stage behaviours that move tasks through the pipeline
//   - topology.go / graph.go: the stage wiring, as data and as instances
//   - stream.go: closed-loop camera streams that inject one frame at a time
//   - simulator.go: run-scoped state shared by every stream of a run
//
// # Execution model
//
// Everything runs on a single goroutine. Stages never block: each suspension
// point (resource acquisition, timed wait, inbox receive, completion wait)
// takes a continuation that the Scheduler resumes later. Events at the same
// timestamp run in the order they were scheduled, so a run is bit-for-bit
// reproducible for a fixed seed.
//
// Sub-packages:
//   - sim/runner/: repeated seeded runs and FPS aggregation
//   - sim/workload/: duration samplers and trace file parsers
//   - sim/trace/: optional execution trace recording
package sim
