package control

import "fmt"

// DetectStatus reports LostLine when the frame has too little contrast
// (max - min below threshold) to contain a line.
func DetectStatus(samples []float64, threshold float64) (Status, error) {
	if len(samples) != NumSensors {
		return LostLine, fmt.Errorf("%w: expected %d samples, got %d", ErrInvalidInput, NumSensors, len(samples))
	}
	lo, hi := samples[0], samples[0]
	for i, s := range samples {
		if !isFinite(s) {
			return LostLine, fmt.Errorf("%w: sample %d is not finite", ErrInvalidInput, i)
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	if hi-lo < threshold {
		return LostLine, nil
	}
	return OnLine, nil
}
