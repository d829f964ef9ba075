package control

import (
	"fmt"
	"math"
)

// SensorFrame is one raw reading per sensor, in physical order (left to right).
type SensorFrame [NumSensors]float64

// EstimateDetail is the full result of one position estimate
type EstimateDetail struct {
	Position   float64
	PeakIndex  int
	Offset     float64 // vertex offset from the peak, in sensor spacings
	Degenerate bool    // centroid fallback was used
}

// ResponseCurve validates samples and applies the line polarity.
// For BrightLineOnDarkField each reading becomes fullScale - v.
func ResponseCurve(samples []float64, mode LineMode, fullScale float64) (SensorFrame, error) {
	var v SensorFrame
	if len(samples) != NumSensors {
		return v, fmt.Errorf("%w: expected %d samples, got %d", ErrInvalidInput, NumSensors, len(samples))
	}
	if !mode.Valid() {
		return v, fmt.Errorf("%w: line mode %d", ErrInvalidInput, int(mode))
	}
	for i, s := range samples {
		if !isFinite(s) {
			return v, fmt.Errorf("%w: sample %d is not finite", ErrInvalidInput, i)
		}
		if mode == BrightLineOnDarkField {
			v[i] = fullScale - s
		} else {
			v[i] = s
		}
	}
	return v, nil
}

// EstimatePosition reduces a sensor frame to the lateral line position.
//
// The result always lies in [cfg.Positions[0], cfg.Positions[7]].
func EstimatePosition(samples []float64, mode LineMode, cfg EstimatorConfig) (float64, error) {
	d, err := Estimate(samples, mode, cfg)
	if err != nil {
		return 0, err
	}
	return d.Position, nil
}

// Estimate locates the peak response and fits a parabola through it and its
// two neighbours. Peaks on the first or last sensor get a linearly
// extrapolated virtual neighbour so the same fit applies at the edges.
func Estimate(samples []float64, mode LineMode, cfg EstimatorConfig) (EstimateDetail, error) {
	v, err := ResponseCurve(samples, mode, cfg.FullScale)
	if err != nil {
		return EstimateDetail{}, err
	}

	// first maximum wins
	peak := 0
	for i := 1; i < NumSensors; i++ {
		if v[i] > v[peak] {
			peak = i
		}
	}

	var y0, y1, y2 float64
	switch peak {
	case 0:
		y0, y1, y2 = 2*v[0]-v[1], v[0], v[1]
	case NumSensors - 1:
		y0, y1, y2 = v[peak-1], v[peak], 2*v[peak]-v[peak-1]
	default:
		y0, y1, y2 = v[peak-1], v[peak], v[peak+1]
	}

	offset, degenerate := vertexOffset(y0, y1, y2)
	offset = Clamp(offset, -MaxFitOffset, MaxFitOffset)

	pos := cfg.Positions[peak] + offset*cfg.Spacing
	pos = Clamp(pos, cfg.Positions[0], cfg.Positions[NumSensors-1])

	return EstimateDetail{
		Position:   pos,
		PeakIndex:  peak,
		Offset:     offset,
		Degenerate: degenerate,
	}, nil
}

// vertexOffset returns the parabola vertex of (-1,y0),(0,y1),(1,y2), or the
// weighted centroid of the triple when the curvature is too flat to fit.
func vertexOffset(y0, y1, y2 float64) (float64, bool) {
	den := 2 * (y0 - 2*y1 + y2)
	if math.Abs(den) >= FitEpsilon {
		return (y0 - y2) / den, false
	}
	total := y0 + y1 + y2
	if math.Abs(total) < FitEpsilon {
		return 0, true
	}
	return (y2 - y0) / total, true
}
