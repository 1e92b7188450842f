package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Stream is one closed-loop camera feed: a new frame is injected only after
// the previous one has completed.
type Stream struct {
	id          int
	sim         *Simulator
	graph       *Graph
	totalFrames int
	frames      int
	start       float64
	finish      float64
	started     bool
	finished    bool
}

// NewStream creates a stream that pushes totalFrames frames through graph.
func NewStream(s *Simulator, graph *Graph, id, totalFrames int) (*Stream, error) {
	if totalFrames < 1 {
		return nil, fmt.Errorf("stream %d: total frames must be >= 1, got %d", id, totalFrames)
	}
	if graph == nil {
		return nil, fmt.Errorf("stream %d: graph must not be nil", id)
	}
	return &Stream{id: id, sim: s, graph: graph, totalFrames: totalFrames}, nil
}

// Start starts the graph's stages and schedules the driver loop at the
// current time. Panics if called twice.
func (st *Stream) Start() {
	if st.started {
		panic(fmt.Sprintf("stream %d started twice", st.id))
	}
	st.started = true
	st.graph.Start()
	st.sim.Sched.Schedule(0, func() {
		st.start = st.sim.Now()
		st.inject()
	})
}

func (st *Stream) inject() {
	if st.frames == st.totalFrames {
		st.finish = st.sim.Now()
		st.finished = true
		logrus.Debugf("[t %.3fms] stream %d finished %d frames", st.finish, st.id, st.frames)
		return
	}
	task := NewTask(st.sim.Sched, st.id, st.frames+1)
	st.graph.Entry().Inbox().Put(task)
	task.Done.Wait(func() {
		st.frames++
		st.inject()
	})
}

// ID returns the stream index.
func (st *Stream) ID() int { return st.id }

// Graph returns the stream's pipeline graph.
func (st *Stream) Graph() *Graph { return st.graph }

// Frames returns the number of completed frames.
func (st *Stream) Frames() int { return st.frames }

// Finished reports whether every frame has completed.
func (st *Stream) Finished() bool { return st.finished }

// StartTime returns the virtual time of the first injection.
func (st *Stream) StartTime() float64 { return st.start }

// FinishTime returns the virtual time the last frame completed.
func (st *Stream) FinishTime() float64 { return st.finish }

// Elapsed returns finish - start in ms.
func (st *Stream) Elapsed() float64 { return st.finish - st.start }

// FPS returns the stream's throughput in frames per second.
// Panics if the stream has not finished.
func (st *Stream) FPS() float64 {
	if !st.finished {
		panic(fmt.Sprintf("stream %d: FPS requested before finish (%d/%d frames)", st.id, st.frames, st.totalFrames))
	}
	return FramesPerSecond(st.frames, st.Elapsed())
}
