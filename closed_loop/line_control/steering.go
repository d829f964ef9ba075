package control

import "math"

// Steering converts the PID output into an integer turn command
type Steering struct {
	cfg SteeringConfig
}

// NewSteering normalizes cfg and returns a Steering stage.
func NewSteering(cfg SteeringConfig) *Steering {
	return &Steering{cfg: cfg.Normalize()}
}

// Normalize clamps every scale into [0.01, 1] and fills a zero error range.
func (c SteeringConfig) Normalize() SteeringConfig {
	c.FixedScale = Clamp(c.FixedScale, 0.01, 1)
	c.SmallErrorScale = Clamp(c.SmallErrorScale, 0.01, 1)
	c.LargeErrorScale = Clamp(c.LargeErrorScale, 0.01, 1)
	if c.ErrorRange <= 0 {
		c.ErrorRange = 1000
	}
	return c
}

// Config returns the normalized configuration
func (s *Steering) Config() SteeringConfig {
	return s.cfg
}

// Scale returns the output scale for the given position error.
func (s *Steering) Scale(err float64) float64 {
	if !s.cfg.Dynamic {
		return s.cfg.FixedScale
	}
	x := Clamp(math.Abs(err)/s.cfg.ErrorRange, 0, 1)

	var f float64
	switch s.cfg.Curve {
	case CurveQuadratic:
		f = x * x
	case CurveSqrt:
		f = math.Sqrt(x)
	case CurveCubic:
		f = x * x * x
	default:
		f = x
	}
	return s.cfg.SmallErrorScale + (s.cfg.LargeErrorScale-s.cfg.SmallErrorScale)*f
}

// TurnCommand scales the PID output and rounds it half away from zero so
// small corrections are not truncated to nothing.
func (s *Steering) TurnCommand(pidOutput, err float64) (scale, scaled float64, turn int) {
	scale = s.Scale(err)
	scaled = pidOutput * scale
	return scale, scaled, int(math.Round(scaled))
}
