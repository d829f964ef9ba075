package control

import "math"

// SensorArrayModel synthesises raw readings for a line at a known position.
// The line has a Gaussian reflectance profile of standard deviation LineWidth.
type SensorArrayModel struct {
	Positions  [NumSensors]float64 `json:"-" yaml:"-"`
	LineWidth  float64             `json:"line_width" yaml:"line_width"`
	Background float64             `json:"background" yaml:"background"` // reading over the bare field
	LineLevel  float64             `json:"line_level" yaml:"line_level"` // reading centred on the line
	FullScale  float64             `json:"-" yaml:"-"`
}

// DefaultSensorArrayModel matches the track car: dark field reads about 1600,
// the white tape about 300.
func DefaultSensorArrayModel(est EstimatorConfig) SensorArrayModel {
	return SensorArrayModel{
		Positions:  est.Positions,
		LineWidth:  200,
		Background: 1600,
		LineLevel:  300,
		FullScale:  est.FullScale,
	}
}

// Render returns the frame the array would read with the line at linePos.
func (m SensorArrayModel) Render(linePos float64) SensorFrame {
	var f SensorFrame
	w := m.LineWidth
	if w <= 0 {
		w = 1
	}
	for i, x := range m.Positions {
		d := (x - linePos) / w
		v := m.Background + (m.LineLevel-m.Background)*math.Exp(-0.5*d*d)
		if m.FullScale > 0 {
			v = Clamp(v, 0, m.FullScale)
		}
		f[i] = math.Round(v)
	}
	return f
}

// LateralPlant is a damped second-order model of the line offset seen by the
// array. A positive command accelerates the offset in the positive direction.
type LateralPlant struct {
	Position    float64 `json:"initial_position" yaml:"initial_position"`
	Velocity    float64 `json:"-" yaml:"-"`
	Gain        float64 `json:"gain" yaml:"gain"`
	Damping     float64 `json:"damping" yaml:"damping"`
	Disturbance float64 `json:"disturbance" yaml:"disturbance"` // constant drift acceleration
}

// Step integrates the plant over dt under command u (semi-implicit Euler).
func (p *LateralPlant) Step(u, dt float64) float64 {
	acc := p.Gain*u - p.Damping*p.Velocity + p.Disturbance
	p.Velocity += acc * dt
	p.Position += p.Velocity * dt
	return p.Position
}

// FirstOrderPlant is y' = (u - y) / Tau.
type FirstOrderPlant struct {
	Tau   float64
	Value float64
}

func (p *FirstOrderPlant) Step(u, dt float64) float64 {
	p.Value += (u - p.Value) * dt / p.Tau
	return p.Value
}

// Integrator is y' = u.
type Integrator struct {
	Value float64
}

func (p *Integrator) Step(u, dt float64) float64 {
	p.Value += u * dt
	return p.Value
}
