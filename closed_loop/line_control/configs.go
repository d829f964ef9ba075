package control

import (
	"fmt"

	"go.uber.org/multierr"
)

// NumSensors is the width of the reflectance array.
const NumSensors = 8

// Fit and actuation bounds shared by the estimator and the PID controller.
const (
	// FitEpsilon guards the parabola denominator and the centroid weight
	// against floating-point noise on near-collinear triples.
	FitEpsilon = 0.001

	// MaxFitOffset limits the vertex to one sensor spacing either side of the peak.
	MaxFitOffset = 1.0

	// DefaultOutputLimit is the symmetric actuator saturation.
	DefaultOutputLimit = 100.0

	// DefaultLostLineThreshold is the minimum max-min contrast (ADC counts)
	// for a frame to be considered on the line.
	DefaultLostLineThreshold = 400.0
)

// EstimatorConfig holds the sensor array geometry
type EstimatorConfig struct {
	Positions [NumSensors]float64 `json:"positions" yaml:"positions"`
	Spacing   float64             `json:"spacing" yaml:"spacing"`
	FullScale float64             `json:"full_scale" yaml:"full_scale"`
}

// DefaultEstimatorConfig returns the geometry of the stock 8-channel board:
// 12-bit ADC, sensors 286 units apart, spanning [-1000, 1000].
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Positions: [NumSensors]float64{-1000, -714, -428, -142, 142, 428, 714, 1000},
		Spacing:   286,
		FullScale: 4095,
	}
}

// Validate checks the geometry. All problems are reported together.
func (c EstimatorConfig) Validate() error {
	var err error
	for i := 1; i < NumSensors; i++ {
		if !(c.Positions[i] > c.Positions[i-1]) {
			err = multierr.Append(err, fmt.Errorf("positions not strictly increasing at index %d (%g <= %g)",
				i, c.Positions[i], c.Positions[i-1]))
		}
	}
	if !(c.Spacing > 0) {
		err = multierr.Append(err, fmt.Errorf("invalid spacing: %g", c.Spacing))
	}
	if !(c.FullScale > 0) {
		err = multierr.Append(err, fmt.Errorf("invalid full_scale: %g", c.FullScale))
	}
	return err
}

// PIDGains are the live-updatable controller gains
type PIDGains struct {
	Kp float64 `json:"kp" yaml:"kp"`
	Ki float64 `json:"ki" yaml:"ki"`
	Kd float64 `json:"kd" yaml:"kd"`
}

// PIDConfig holds PID controller parameters
type PIDConfig struct {
	Gains     PIDGains `json:"gains" yaml:"gains"`
	OutputMin float64  `json:"output_min" yaml:"output_min"`
	OutputMax float64  `json:"output_max" yaml:"output_max"`

	// Reverse negates the error for actuators that act against the measurement.
	Reverse bool `json:"reverse,omitempty" yaml:"reverse,omitempty"`
	// DerivativeFilter is the low-pass weight of the newest derivative sample,
	// in (0, 1]; 0 disables filtering.
	DerivativeFilter float64 `json:"derivative_filter,omitempty" yaml:"derivative_filter,omitempty"`
	// Mode is the controller mode after construction.
	Mode PIDMode `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// DefaultPIDConfig returns zero gains with the standard [-100, 100] output range.
func DefaultPIDConfig() PIDConfig {
	return PIDConfig{
		OutputMin: -DefaultOutputLimit,
		OutputMax: DefaultOutputLimit,
	}
}

// Validate checks the output range and that gains are finite.
func (c PIDConfig) Validate() error {
	var err error
	if !(c.OutputMin < c.OutputMax) {
		err = multierr.Append(err, fmt.Errorf("output_min %g must be below output_max %g", c.OutputMin, c.OutputMax))
	}
	if !isFinite(c.DerivativeFilter) || c.DerivativeFilter < 0 || c.DerivativeFilter > 1 {
		err = multierr.Append(err, fmt.Errorf("derivative_filter %g outside [0, 1]", c.DerivativeFilter))
	}
	if !c.Mode.Valid() {
		err = multierr.Append(err, fmt.Errorf("invalid mode %d", int(c.Mode)))
	}
	gains := []struct {
		name string
		v    float64
	}{{"kp", c.Gains.Kp}, {"ki", c.Gains.Ki}, {"kd", c.Gains.Kd}}
	for _, g := range gains {
		if !isFinite(g.v) {
			err = multierr.Append(err, fmt.Errorf("gain %s is not finite", g.name))
		}
	}
	return err
}

// SteeringConfig controls how the PID output is scaled into a turn command
type SteeringConfig struct {
	FixedScale      float64    `json:"fixed_scale" yaml:"fixed_scale"`
	Dynamic         bool       `json:"dynamic" yaml:"dynamic"`
	SmallErrorScale float64    `json:"small_error_scale" yaml:"small_error_scale"`
	LargeErrorScale float64    `json:"large_error_scale" yaml:"large_error_scale"`
	Curve           ScaleCurve `json:"curve" yaml:"curve"`
	ErrorRange      float64    `json:"error_range" yaml:"error_range"` // |error| mapped to curve input 1.0
}

// DefaultSteeringConfig mirrors the tuning used on the track car.
func DefaultSteeringConfig() SteeringConfig {
	return SteeringConfig{
		FixedScale:      0.15,
		SmallErrorScale: 0.03,
		LargeErrorScale: 0.15,
		Curve:           CurveLinear,
		ErrorRange:      1000,
	}
}

// FollowerConfig bundles everything a Follower needs
type FollowerConfig struct {
	Mode              LineMode        `json:"line_mode" yaml:"line_mode"`
	Estimator         EstimatorConfig `json:"estimator" yaml:"estimator"`
	PID               PIDConfig       `json:"pid_config" yaml:"pid_config"`
	Steering          SteeringConfig  `json:"steering" yaml:"steering"`
	Calibration       *Calibration    `json:"calibration,omitempty" yaml:"calibration,omitempty"`
	LostLineThreshold float64         `json:"lost_line_threshold" yaml:"lost_line_threshold"`
	// ReverseOrder is set when the board is mounted so that physical sensor 0
	// sits on the right; frames are flipped into left-to-right order.
	ReverseOrder bool `json:"reverse_order,omitempty" yaml:"reverse_order,omitempty"`
}

// DefaultFollowerConfig returns a follower tuned for a bright line on a dark field.
func DefaultFollowerConfig() FollowerConfig {
	return FollowerConfig{
		Mode:              BrightLineOnDarkField,
		Estimator:         DefaultEstimatorConfig(),
		PID:               DefaultPIDConfig(),
		Steering:          DefaultSteeringConfig(),
		LostLineThreshold: DefaultLostLineThreshold,
	}
}

// Validate checks every section of the follower config.
func (c FollowerConfig) Validate() error {
	var err error
	if !c.Mode.Valid() {
		err = multierr.Append(err, fmt.Errorf("invalid line_mode %d", int(c.Mode)))
	}
	if e := c.Estimator.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("estimator: %w", e))
	}
	if e := c.PID.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("pid_config: %w", e))
	}
	if c.LostLineThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid lost_line_threshold: %g", c.LostLineThreshold))
	}
	if c.Steering.ErrorRange < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid steering.error_range: %g", c.Steering.ErrorRange))
	}
	return err
}
