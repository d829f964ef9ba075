package control

import "fmt"

// Calibration holds per-sensor readings taken over the bright field (White)
// and over the dark field (Black).
type Calibration struct {
	White [NumSensors]float64 `json:"white" yaml:"white"`
	Black [NumSensors]float64 `json:"black" yaml:"black"`

	seeded bool
}

// IsZero reports whether no calibration was captured.
func (c *Calibration) IsZero() bool {
	return c == nil || (c.White == [NumSensors]float64{} && c.Black == [NumSensors]float64{})
}

// Apply rescales each reading onto [0, fullScale] using its sensor's
// white/black span. Sensors with a span of 1 count or less are passed through.
func (c *Calibration) Apply(samples []float64, fullScale float64) ([]float64, error) {
	if len(samples) != NumSensors {
		return nil, fmt.Errorf("%w: expected %d samples, got %d", ErrInvalidInput, NumSensors, len(samples))
	}
	out := make([]float64, NumSensors)
	if c.IsZero() {
		copy(out, samples)
		return out, nil
	}
	for i, s := range samples {
		if !isFinite(s) {
			return nil, fmt.Errorf("%w: sample %d is not finite", ErrInvalidInput, i)
		}
		span := c.Black[i] - c.White[i]
		if span <= 1 {
			out[i] = s
			continue
		}
		out[i] = fullScale * Clamp((s-c.White[i])/span, 0, 1)
	}
	return out, nil
}

// Accumulate widens the calibration with a frame seen while sweeping the
// array across line and field: the lowest reading per sensor becomes White,
// the highest Black. The first frame seeds an empty calibration; a loaded
// one is widened.
func (c *Calibration) Accumulate(samples SensorFrame) {
	first := !c.seeded && c.IsZero()
	c.seeded = true
	for i, s := range samples {
		if first || s < c.White[i] {
			c.White[i] = s
		}
		if first || s > c.Black[i] {
			c.Black[i] = s
		}
	}
}
