package trajectory

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

var (
	// ErrEmpty is returned when a trajectory with no points is used where
	// at least one is required.
	ErrEmpty = errors.New("trajectory is empty")

	// ErrNonFinite is returned when a coordinate is NaN or infinite.
	ErrNonFinite = errors.New("trajectory has non-finite coordinate")
)

// Point is a position on the simulator ground plane.
type Point = r2.Point

// Trajectory is an ordered sequence of points from one driving session.
type Trajectory []Point

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return a.Sub(b).Norm()
}

// IsFinite reports whether both coordinates of p are finite.
func IsFinite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Validate checks that t is non-empty and every coordinate is finite.
func (t Trajectory) Validate() error {
	if len(t) == 0 {
		return ErrEmpty
	}
	for i, p := range t {
		if !IsFinite(p) {
			return fmt.Errorf("point %d (%v, %v): %w", i, p.X, p.Y, ErrNonFinite)
		}
	}
	return nil
}

// Start returns the first point. ok is false for an empty trajectory.
func (t Trajectory) Start() (p Point, ok bool) {
	if len(t) == 0 {
		return Point{}, false
	}
	return t[0], true
}

// Last returns the most recently appended point.
func (t Trajectory) Last() (p Point, ok bool) {
	if len(t) == 0 {
		return Point{}, false
	}
	return t[len(t)-1], true
}

// Length returns the polyline arc length.
func (t Trajectory) Length() float64 {
	var total float64
	for i := 1; i < len(t); i++ {
		total += Distance(t[i-1], t[i])
	}
	return total
}

// Bounds returns the smallest rectangle containing all points.
// An empty trajectory yields an empty rect.
func (t Trajectory) Bounds() r2.Rect {
	if len(t) == 0 {
		return r2.EmptyRect()
	}
	return r2.RectFromPoints(t...)
}

// Clone returns a copy that shares no backing storage with t.
func (t Trajectory) Clone() Trajectory {
	if t == nil {
		return nil
	}
	out := make(Trajectory, len(t))
	copy(out, t)
	return out
}
