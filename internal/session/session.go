// Package session runs one driving session against a simulator: it records
// the driven trajectory frame by frame and stops when the lap detector
// reports a closed lap, when the frame budget is exhausted, or on
// cancellation.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/racingline/internal/lap"
	"github.com/banshee-data/racingline/internal/monitoring"
	"github.com/banshee-data/racingline/internal/timeutil"
	"github.com/banshee-data/racingline/internal/trajectory"
)

// Status is how a session ended.
type Status string

const (
	// StatusComplete means the lap detector closed the lap.
	StatusComplete Status = "complete"
	// StatusIncomplete means the session ended without closing the lap:
	// the frame budget ran out or the feed ended.
	StatusIncomplete Status = "incomplete"
	// StatusCancelled means the context was cancelled mid-session.
	StatusCancelled Status = "cancelled"
)

// State is the lifecycle stage of a session's trajectory.
type State int

const (
	StateCollecting State = iota
	StateFinalized
	StateEvaluated
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateFinalized:
		return "finalized"
	case StateEvaluated:
		return "evaluated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SpeedBand overrides throttle to keep the vehicle between MinKmh and MaxKmh.
type SpeedBand struct {
	MinKmh float64
	MaxKmh float64
}

// Throttle applies the band to throttle given the current speed.
func (b SpeedBand) Throttle(speedKmh, throttle float64) float64 {
	switch {
	case speedKmh < b.MinKmh:
		return 0.7
	case speedKmh > b.MaxKmh:
		return 0
	}
	return throttle
}

// Config controls one session.
type Config struct {
	Detector lap.Detector
	// SkipFrames is the number of warm-up frames driven but not recorded.
	SkipFrames int
	// MaxFrames bounds the session; zero means unbounded.
	MaxFrames int
	// Speed, when set, overrides the driver's throttle.
	Speed *SpeedBand
	// ProgressInterval rate-limits progress logging. Zero uses 500ms.
	ProgressInterval time.Duration
}

// Outcome summarises a finished session.
type Outcome struct {
	Trajectory       trajectory.Trajectory
	Status           Status
	Frames           int
	ManualFrames     int
	AvgSpeedKmh      float64
	MaxSpeedKmh      float64
	InterventionRate float64
	Duration         time.Duration
}

// Session owns all mutable state of one run. It is not safe for concurrent
// use and Run may only be called once.
type Session struct {
	sim    Simulator
	driver Driver
	cfg    Config
	clock  timeutil.Clock
	logf   func(format string, v ...interface{})

	state        State
	points       trajectory.Trajectory
	speeds       []float64
	frames       int
	manualFrames int
}

// New creates a session. A nil clock uses the wall clock.
func New(sim Simulator, driver Driver, cfg Config, clock timeutil.Clock) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 500 * time.Millisecond
	}
	return &Session{
		sim:    sim,
		driver: driver,
		cfg:    cfg,
		clock:  clock,
		logf:   monitoring.Component("Session"),
		state:  StateCollecting,
	}
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return s.state
}

// MarkEvaluated records that the finalized trajectory has been scored.
func (s *Session) MarkEvaluated() error {
	if s.state != StateFinalized {
		return fmt.Errorf("cannot evaluate a session in state %s", s.state)
	}
	s.state = StateEvaluated
	return nil
}

// Run drives the session to its end. A closed lap, an exhausted frame
// budget, the end of the feed and cancellation all return a nil error with
// the corresponding Status. Simulator failures return the partial outcome
// together with the error.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	if s.state != StateCollecting {
		return Outcome{}, fmt.Errorf("session already ran (state %s)", s.state)
	}
	start := s.clock.Now()
	lastLog := start

	status, err := s.loop(ctx, &lastLog)
	s.state = StateFinalized

	out := s.outcome(status, s.clock.Since(start))
	if err != nil {
		return out, err
	}
	s.logf("finished: status=%s frames=%d points=%d avg speed=%.2fkm/h intervention rate=%.3f",
		out.Status, out.Frames, len(out.Trajectory), out.AvgSpeedKmh, out.InterventionRate)
	return out, nil
}

func (s *Session) loop(ctx context.Context, lastLog *time.Time) (Status, error) {
	for {
		if ctx.Err() != nil {
			return StatusCancelled, nil
		}
		if s.cfg.MaxFrames > 0 && s.frames >= s.cfg.MaxFrames {
			s.logf("frame budget of %d exhausted without closing the lap", s.cfg.MaxFrames)
			return StatusIncomplete, nil
		}

		f, err := s.sim.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			s.logf("feed ended after %d frames without closing the lap", s.frames)
			return StatusIncomplete, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return StatusCancelled, nil
			}
			return StatusIncomplete, fmt.Errorf("read frame %d: %w", s.frames+1, err)
		}
		if !trajectory.IsFinite(f.Position) {
			return StatusIncomplete, fmt.Errorf("frame %d: %w", f.Index, ErrNoPosition)
		}
		s.frames++

		ctrl := s.control(f)
		if err := s.sim.SendControl(ctx, ctrl); err != nil {
			if ctx.Err() != nil {
				return StatusCancelled, nil
			}
			return StatusIncomplete, fmt.Errorf("send control for frame %d: %w", f.Index, err)
		}

		if f.Manual {
			s.manualFrames++
			continue
		}
		s.speeds = append(s.speeds, f.SpeedKmh())

		if s.frames <= s.cfg.SkipFrames {
			if s.frames == 1 {
				s.logf("skipping first %d frames", s.cfg.SkipFrames)
			}
			continue
		}

		s.points = append(s.points, f.Position)
		d := s.cfg.Detector.Decide(s.points)
		if d.Complete {
			s.logf("position [%.4f,%.4f] closes the lap after %d points", f.Position.X, f.Position.Y, d.Samples)
			return StatusComplete, nil
		}

		if s.clock.Since(*lastLog) > s.cfg.ProgressInterval {
			s.logf("add point [%.4f,%.4f], steer %.2f, throttle %.2f, points count %04d, distance from start %.4f",
				f.Position.X, f.Position.Y, ctrl.Steer, ctrl.Throttle, d.Samples, d.Distance)
			*lastLog = s.clock.Now()
		}
	}
}

// control picks the command for f: the recorded human control on manual
// frames, otherwise the driver's output subject to the speed band.
func (s *Session) control(f Frame) Control {
	if f.Manual {
		return AutopilotDriver{}.Control(f)
	}
	c := s.driver.Control(f)
	if s.cfg.Speed != nil {
		c.Throttle = s.cfg.Speed.Throttle(f.SpeedKmh(), c.Throttle)
	}
	return c
}

func (s *Session) outcome(status Status, elapsed time.Duration) Outcome {
	out := Outcome{
		Trajectory:   s.points.Clone(),
		Status:       status,
		Frames:       s.frames,
		ManualFrames: s.manualFrames,
		Duration:     elapsed,
	}
	if len(s.speeds) > 0 {
		out.AvgSpeedKmh = stat.Mean(s.speeds, nil)
		out.MaxSpeedKmh = floats.Max(s.speeds)
	}
	if s.frames > 0 {
		out.InterventionRate = float64(s.manualFrames) / float64(s.frames)
	}
	return out
}
