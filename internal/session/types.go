package session

import (
	"context"
	"errors"

	"github.com/banshee-data/racingline/internal/trajectory"
	"github.com/banshee-data/racingline/internal/units"
)

// ErrNoPosition is returned when the simulator delivers a frame without a
// usable vehicle pose.
var ErrNoPosition = errors.New("frame has no usable position")

// Control is one actuation command sent to the vehicle.
type Control struct {
	Steer    float64 `json:"steer"`
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
}

// Frame is one simulator step as seen by the session.
type Frame struct {
	// Index is the simulator's own frame number, informational only.
	Index int
	// Position is the vehicle location projected to the ground plane.
	Position trajectory.Point
	// ForwardSpeed is in metres per second.
	ForwardSpeed float64
	// Autopilot is the control the simulator or a human would have applied
	// this frame, when known.
	Autopilot *Control
	// Manual marks frames during which a human has taken over.
	Manual bool
}

// SpeedKmh returns the forward speed in km/h.
func (f Frame) SpeedKmh() float64 {
	return units.ToKmh(f.ForwardSpeed)
}

// Simulator is the driving simulator as seen by a session.
// ReadFrame returns io.EOF once the feed has ended.
type Simulator interface {
	ReadFrame(ctx context.Context) (Frame, error)
	SendControl(ctx context.Context, c Control) error
}

// Driver produces the control for a frame, typically from a trained model.
type Driver interface {
	Control(f Frame) Control
}

// DriverFunc adapts a function to Driver.
type DriverFunc func(Frame) Control

// Control calls fn(f).
func (fn DriverFunc) Control(f Frame) Control { return fn(f) }

// AutopilotDriver replays the control recorded in each frame, and
// releases the pedals when none was recorded.
type AutopilotDriver struct{}

// Control returns f.Autopilot, or a zero control.
func (AutopilotDriver) Control(f Frame) Control {
	if f.Autopilot != nil {
		return *f.Autopilot
	}
	return Control{}
}
