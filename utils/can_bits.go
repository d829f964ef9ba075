package utils

import "math"

// rawBounds is the interval a bitLen-wide field can hold.
func rawBounds(bitLen int, signed bool) (lo, hi int64) {
	switch {
	case bitLen <= 0 || bitLen > 63:
		return math.MinInt64, math.MaxInt64
	case signed:
		return -(1 << (bitLen - 1)), 1<<(bitLen-1) - 1
	default:
		return 0, 1<<bitLen - 1
	}
}

// physToRaw scales a physical value into the signal's raw integer. The value
// saturates first at the signal's physical limits, then at the field width.
// NaN encodes the signal default.
func physToRaw(s SignalDef, v float64) int64 {
	if math.IsNaN(v) {
		v = s.Default
	}
	if s.Min < s.Max {
		v = min(max(v, s.Min), s.Max)
	}
	lo, hi := rawBounds(s.BitLength, s.Signed)
	scaled := math.Round((v - s.Offset) / s.factor())
	if scaled <= float64(lo) {
		return lo
	}
	if scaled >= float64(hi) {
		return hi
	}
	return int64(scaled)
}

func rawToPhys(s SignalDef, raw int64) float64 {
	return float64(raw)*s.factor() + s.Offset
}

func (s SignalDef) factor() float64 {
	if s.Factor == 0 {
		return 1
	}
	return s.Factor
}
