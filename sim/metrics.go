// Throughput helpers shared by streams and the run orchestrator.

package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// MillisPerSecond converts the clock's ms unit into seconds.
const MillisPerSecond = 1000.0

// FramesPerSecond converts a frame count over elapsed virtual ms into FPS.
// Zero elapsed time yields +Inf, which only happens when every sampled
// duration is zero.
func FramesPerSecond(frames int, elapsedMs float64) float64 {
	if elapsedMs <= 0 {
		logrus.Warnf("FramesPerSecond: %d frames in %.3fms elapsed", frames, elapsedMs)
		return math.Inf(1)
	}
	return float64(frames) / elapsedMs * MillisPerSecond
}
