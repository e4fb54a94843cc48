package session

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/racingline/internal/timeutil"
	"github.com/banshee-data/racingline/internal/trajectory"
)

// ReadTelemetry decodes a recorded drive. The header must name x, y and
// speed columns; steer, throttle, brake and manual are optional. Column
// order is free. speed is in metres per second.
func ReadTelemetry(r io.Reader) ([]Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: telemetry header: %v", trajectory.ErrMalformedCSV, err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, req := range []string{"x", "y", "speed"} {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("%w: telemetry header %q lacks %s column", trajectory.ErrMalformedCSV, strings.Join(header, ","), req)
		}
	}
	_, hasSteer := col["steer"]
	_, hasThrottle := col["throttle"]
	_, hasBrake := col["brake"]
	hasControl := hasSteer || hasThrottle || hasBrake

	var frames []Frame
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", trajectory.ErrMalformedCSV, line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		field := func(name string) (float64, error) {
			i, ok := col[name]
			if !ok {
				return 0, nil
			}
			if i >= len(rec) {
				return 0, fmt.Errorf("%w: line %d: missing %s", trajectory.ErrMalformedCSV, line, name)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return 0, fmt.Errorf("%w: line %d: invalid %s %q", trajectory.ErrMalformedCSV, line, name, rec[i])
			}
			return v, nil
		}

		var vals [6]float64
		for k, name := range []string{"x", "y", "speed", "steer", "throttle", "brake"} {
			if vals[k], err = field(name); err != nil {
				return nil, err
			}
		}
		f := Frame{
			Index:        len(frames) + 1,
			Position:     trajectory.Point{X: vals[0], Y: vals[1]},
			ForwardSpeed: vals[2],
		}
		if hasControl {
			f.Autopilot = &Control{Steer: vals[3], Throttle: vals[4], Brake: vals[5]}
		}
		if i, ok := col["manual"]; ok && i < len(rec) {
			m, err := strconv.ParseBool(strings.TrimSpace(rec[i]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: invalid manual %q", trajectory.ErrMalformedCSV, line, rec[i])
			}
			f.Manual = m
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// ReplaySimulator feeds recorded frames to a session, optionally paced at
// a fixed frame period, and records every control it is sent.
type ReplaySimulator struct {
	frames []Frame
	period time.Duration
	clock  timeutil.Clock

	mu   sync.Mutex
	next int
	sent []Control
}

// NewReplaySimulator replays frames. A positive period sleeps on clock
// before every frame after the first.
func NewReplaySimulator(frames []Frame, period time.Duration, clock timeutil.Clock) *ReplaySimulator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ReplaySimulator{frames: frames, period: period, clock: clock}
}

// ReadFrame returns the next recorded frame or io.EOF.
func (r *ReplaySimulator) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.frames) {
		return Frame{}, io.EOF
	}
	if r.period > 0 && r.next > 0 {
		r.clock.Sleep(r.period)
	}
	f := r.frames[r.next]
	r.next++
	return f, nil
}

// SendControl records c.
func (r *ReplaySimulator) SendControl(ctx context.Context, c Control) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, c)
	return nil
}

// Sent returns a copy of every control received so far.
func (r *ReplaySimulator) Sent() []Control {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Control, len(r.sent))
	copy(out, r.sent)
	return out
}
