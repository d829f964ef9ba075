package control

import (
	"fmt"
	"slices"
)

// TickResult is everything the follower computed for one control tick
type TickResult struct {
	Status   Status
	Position float64 // estimated line position, or the last valid one when lost
	Estimate EstimateDetail
	PID      PIDResult
	Scale    float64
	Scaled   float64
	Turn     int
}

// Follower runs the estimator, status detection, PID and steering stages in
// sequence each tick. The setpoint is the array centre (0).
//
// Like PIDController it must be driven from a single goroutine.
type Follower struct {
	cfg      FollowerConfig
	pid      *PIDController
	steering *Steering

	status       Status
	lastPosition float64
}

// NewFollower validates cfg and returns a stopped follower.
func NewFollower(cfg FollowerConfig) (*Follower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("follower config: %w", err)
	}
	return &Follower{
		cfg:      cfg,
		pid:      NewPIDController(cfg.PID),
		steering: NewSteering(cfg.Steering),
		status:   Stopped,
	}, nil
}

// Start resets the PID and begins tracking.
func (f *Follower) Start() {
	f.pid.Reset()
	f.status = OnLine
	f.lastPosition = 0
}

// Stop halts tracking; Tick returns Stopped results until Start is called.
func (f *Follower) Stop() {
	f.status = Stopped
}

// Status returns the state after the last tick
func (f *Follower) Status() Status {
	return f.status
}

// Mode returns the current line polarity
func (f *Follower) Mode() LineMode {
	return f.cfg.Mode
}

// SetMode switches line polarity for subsequent ticks.
func (f *Follower) SetMode(m LineMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: line mode %d", ErrInvalidInput, int(m))
	}
	f.cfg.Mode = m
	return nil
}

// SetGains updates the PID gains without resetting its state.
func (f *Follower) SetGains(g PIDGains) {
	f.pid.SetGains(g)
}

// PID exposes the underlying controller for diagnostics
func (f *Follower) PID() *PIDController {
	return f.pid
}

// Tick processes one sensor frame taken dt seconds after the previous one.
func (f *Follower) Tick(samples []float64, dt float64) (TickResult, error) {
	if f.status == Stopped {
		return TickResult{Status: Stopped, Position: f.lastPosition}, nil
	}

	// calibration is per physical sensor, so it applies before reordering
	frame, err := f.cfg.Calibration.Apply(samples, f.cfg.Estimator.FullScale)
	if err != nil {
		return TickResult{}, err
	}
	if f.cfg.ReverseOrder {
		slices.Reverse(frame)
	}

	status, err := DetectStatus(frame, f.cfg.LostLineThreshold)
	if err != nil {
		return TickResult{}, err
	}
	if status == LostLine {
		f.status = LostLine
		return TickResult{Status: LostLine, Position: f.lastPosition}, nil
	}

	est, err := Estimate(frame, f.cfg.Mode, f.cfg.Estimator)
	if err != nil {
		return TickResult{}, err
	}

	res, err := f.pid.Compute(0, est.Position, dt)
	if err != nil {
		return TickResult{}, err
	}

	f.status = OnLine
	f.lastPosition = est.Position

	scale, scaled, turn := f.steering.TurnCommand(res.Output, est.Position)
	return TickResult{
		Status:   OnLine,
		Position: est.Position,
		Estimate: est,
		PID:      res,
		Scale:    scale,
		Scaled:   scaled,
		Turn:     turn,
	}, nil
}
