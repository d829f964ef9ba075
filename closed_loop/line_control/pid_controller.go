package control

import "fmt"

// PIDState is the memory a PID loop carries between samples.
//
// It is owned by exactly one control loop; StepPID mutates it in place.
type PIDState struct {
	Integral     float64
	LastError    float64
	LastMeasured float64
	FilteredD    float64 // low-pass derivative memory, see PIDConfig.DerivativeFilter
	FirstSample  bool
}

// NewPIDState returns the state of a freshly reset controller.
func NewPIDState() PIDState {
	return PIDState{FirstSample: true}
}

// PIDResult is the control output of one sample with its term breakdown
type PIDResult struct {
	Output float64
	P      float64
	I      float64
	D      float64
}

// StepPID advances st by one sample.
//
// The integral uses the trapezoidal rule (rectangular on the first sample
// after a reset) and is accumulated unconditionally; only the output is
// saturated. The derivative acts on the measurement, not the error, so
// setpoint steps do not kick the output. dt must be positive; on error st is
// left untouched.
//
// cfg.Reverse flips the sign of the error and of the derivative term.
// cfg.DerivativeFilter > 0 smooths the derivative term with a first-order
// low-pass. cfg.Mode is not consulted here; PIDController handles it.
func StepPID(cfg PIDConfig, st *PIDState, setpoint, measured, dt float64) (PIDResult, error) {
	if !(dt > 0) || !isFinite(dt) {
		return PIDResult{}, fmt.Errorf("%w: dt=%g", ErrInvalidTimestep, dt)
	}
	if !isFinite(setpoint) || !isFinite(measured) {
		return PIDResult{}, fmt.Errorf("%w: setpoint=%g measured=%g", ErrInvalidInput, setpoint, measured)
	}

	g := cfg.Gains
	err := setpoint - measured
	if cfg.Reverse {
		err = -err
	}

	p := g.Kp * err

	if st.FirstSample {
		st.Integral += g.Ki * err * dt
	} else {
		st.Integral += g.Ki * (err + st.LastError) * 0.5 * dt
	}
	i := st.Integral

	var d float64
	if !st.FirstSample {
		d = -g.Kd * (measured - st.LastMeasured) / dt
		if cfg.Reverse {
			d = -d
		}
	}
	if a := cfg.DerivativeFilter; a > 0 {
		if !st.FirstSample {
			d = a*d + (1-a)*st.FilteredD
		}
		st.FilteredD = d
	}

	out := Clamp(p+i+d, cfg.OutputMin, cfg.OutputMax)

	st.LastError = err
	st.LastMeasured = measured
	st.FirstSample = false

	return PIDResult{Output: out, P: p, I: i, D: d}, nil
}

// PIDController implements a discrete PID controller for line tracking.
//
// Not safe for concurrent use: only the control loop goroutine may call
// Compute and Reset.
type PIDController struct {
	cfg   PIDConfig
	mode  PIDMode
	state PIDState
	last  PIDResult
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig) *PIDController {
	return &PIDController{
		cfg:   cfg,
		mode:  cfg.Mode,
		state: NewPIDState(),
	}
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.state = NewPIDState()
	pid.last = PIDResult{}
}

// Compute runs one sample of the loop. In manual mode it returns the last
// result and leaves the state alone.
func (pid *PIDController) Compute(setpoint, measured, dt float64) (PIDResult, error) {
	if pid.mode == PIDManual {
		return pid.last, nil
	}
	res, err := StepPID(pid.cfg, &pid.state, setpoint, measured, dt)
	if err != nil {
		return PIDResult{}, err
	}
	pid.last = res
	return res, nil
}

// SetMode switches between automatic and manual. Returning to automatic
// resets the state so the loop restarts from a first sample.
func (pid *PIDController) SetMode(m PIDMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: pid mode %d", ErrInvalidInput, int(m))
	}
	if m == PIDAutomatic && pid.mode == PIDManual {
		pid.Reset()
	}
	pid.mode = m
	return nil
}

// Mode returns the current controller mode
func (pid *PIDController) Mode() PIDMode {
	return pid.mode
}

// SetGains updates the gains; the next sample picks them up. State is kept.
func (pid *PIDController) SetGains(g PIDGains) {
	pid.cfg.Gains = g
}

// Gains returns the current gains
func (pid *PIDController) Gains() PIDGains {
	return pid.cfg.Gains
}

// State returns a copy of the controller memory
func (pid *PIDController) State() PIDState {
	return pid.state
}

// GetDiagnostics returns current PID state for logging/debugging
func (pid *PIDController) GetDiagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:    pid.state.LastError,
		Integral: pid.state.Integral,
		Last:     pid.last,
		Steady:   !pid.state.FirstSample,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	Last     PIDResult
	Steady   bool
}
