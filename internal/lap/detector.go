// Package lap decides when a driven path has closed a lap by returning near
// its own starting point.
//
// The detector is causal: it only ever looks at the points recorded so far
// and keeps no state between calls. The caller owns the growing trajectory
// and stops its loop once Complete reports true.
package lap

import (
	"math"

	"github.com/banshee-data/racingline/internal/trajectory"
)

// Detector holds the completion threshold and the minimum number of
// recorded points required before a return to start may count.
type Detector struct {
	// Threshold is the distance from the first point below which the lap
	// is considered closed. The comparison is strict.
	Threshold float64

	// Guard is the number of points that must already be recorded before
	// completion can fire. Zero disables the guard.
	Guard int
}

// ReferenceCapture is the tight regime used while recording a reference line
// with frame skipping: positions are sparse and noise is low.
func ReferenceCapture() Detector {
	return Detector{Threshold: 0.5, Guard: 0}
}

// AutonomousDrive is the loose regime for real-time model driving, where
// per-frame noise is larger and the car lingers near the start pose.
func AutonomousDrive() Detector {
	return Detector{Threshold: 1.0, Guard: 100}
}

// ManualDrive is the regime used by the interactive driving client, which
// records from an earlier frame and so needs a shorter guard.
func ManualDrive() Detector {
	return Detector{Threshold: 1.0, Guard: 20}
}

// DistanceFromStart returns the distance between the first and the last
// point of points. With fewer than two points there is no meaningful start
// yet and +Inf is returned.
func DistanceFromStart(points trajectory.Trajectory) float64 {
	if len(points) < 2 {
		return math.Inf(1)
	}
	return trajectory.Distance(points[0], points[len(points)-1])
}

// Complete reports whether the most recently appended point closes the lap.
func (d Detector) Complete(points trajectory.Trajectory) bool {
	if len(points) <= d.Guard {
		return false
	}
	return DistanceFromStart(points) < d.Threshold
}

// Decision is the verdict for one frame together with the distance that
// produced it, for progress logging.
type Decision struct {
	Complete bool
	Distance float64
	Samples  int
}

// Decide is Complete with the intermediate values exposed.
func (d Detector) Decide(points trajectory.Trajectory) Decision {
	return Decision{
		Complete: d.Complete(points),
		Distance: DistanceFromStart(points),
		Samples:  len(points),
	}
}
