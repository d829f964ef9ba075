package control

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/constraints"
)

// Caller contract violations. Numeric degeneracies inside valid input are
// handled by the estimator's fallback policy and never surface as errors.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidTimestep = errors.New("invalid timestep")
)

// Clamp keeps value inside [lo, hi]
func Clamp[T constraints.Float | constraints.Integer](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LineMode selects the polarity of the line against the field
type LineMode int

const (
	// BrightLineOnDarkField inverts readings (fullScale - v) so the line is the peak.
	BrightLineOnDarkField LineMode = iota + 1
	// DarkLineOnBrightField uses readings as-is.
	DarkLineOnBrightField
)

func (m LineMode) Valid() bool {
	return m == BrightLineOnDarkField || m == DarkLineOnBrightField
}

func (m LineMode) String() string {
	switch m {
	case BrightLineOnDarkField:
		return "bright_on_dark"
	case DarkLineOnBrightField:
		return "dark_on_bright"
	default:
		return fmt.Sprintf("LineMode(%d)", int(m))
	}
}

// ParseLineMode converts a mode name into a LineMode.
func ParseLineMode(value string) (LineMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "bright_on_dark", "white_line_on_black":
		return BrightLineOnDarkField, nil
	case "dark_on_bright", "black_line_on_white":
		return DarkLineOnBrightField, nil
	default:
		return 0, fmt.Errorf("%w: unknown line mode %q", ErrInvalidInput, value)
	}
}

// MarshalText lets modes round-trip through JSON and YAML as strings.
func (m LineMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: line mode %d", ErrInvalidInput, int(m))
	}
	return []byte(m.String()), nil
}

func (m *LineMode) UnmarshalText(b []byte) error {
	parsed, err := ParseLineMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// PIDMode selects whether the controller runs the loop or holds its output
type PIDMode int

const (
	PIDAutomatic PIDMode = iota
	// PIDManual freezes the controller: Compute returns the last result.
	PIDManual
)

func (m PIDMode) Valid() bool {
	return m == PIDAutomatic || m == PIDManual
}

func (m PIDMode) String() string {
	switch m {
	case PIDAutomatic:
		return "automatic"
	case PIDManual:
		return "manual"
	default:
		return fmt.Sprintf("PIDMode(%d)", int(m))
	}
}

func (m PIDMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PIDMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "automatic", "auto":
		*m = PIDAutomatic
	case "manual":
		*m = PIDManual
	default:
		return fmt.Errorf("%w: unknown pid mode %q", ErrInvalidInput, string(b))
	}
	return nil
}

// Status is the tracking state of the follower
type Status int

const (
	OnLine Status = iota
	LostLine
	Stopped
)

func (s Status) String() string {
	switch s {
	case OnLine:
		return "ON_LINE"
	case LostLine:
		return "LOST_LINE"
	case Stopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ScaleCurve shapes the dynamic steering scale against the error magnitude
type ScaleCurve int

const (
	CurveLinear ScaleCurve = iota
	CurveQuadratic
	CurveSqrt
	CurveCubic
)

func (c ScaleCurve) String() string {
	switch c {
	case CurveLinear:
		return "linear"
	case CurveQuadratic:
		return "quadratic"
	case CurveSqrt:
		return "sqrt"
	case CurveCubic:
		return "cubic"
	default:
		return fmt.Sprintf("ScaleCurve(%d)", int(c))
	}
}

func (c ScaleCurve) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ScaleCurve) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "linear":
		*c = CurveLinear
	case "quadratic":
		*c = CurveQuadratic
	case "sqrt":
		*c = CurveSqrt
	case "cubic":
		*c = CurveCubic
	default:
		return fmt.Errorf("unknown scale curve %q", string(b))
	}
	return nil
}
