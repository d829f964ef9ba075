package utils

import "sort"

// Frame names used by the line tracker.
const (
	FrameLineSensorA = "LINE_SENSOR_A" // channels 0..3
	FrameLineSensorB = "LINE_SENSOR_B" // channels 4..7
	FrameSteerCmd    = "STEER_CMD"
)

// Frame directions as seen from the controller.
const (
	DirectionRX = "rx"
	DirectionTX = "tx"
)

// SignalDef is one little-endian bit field: phys = raw*Factor + Offset.
type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Endianness string
	Factor     float64
	Offset     float64
	Min        float64 // physical saturation, ignored unless Min < Max
	Max        float64
	Default    float64 // sent when a value is missing
	Unit       string
	Comment    string
}

// FrameDef groups the signals of one CAN ID, sorted by start bit.
type FrameDef struct {
	ID        uint32
	Name      string
	Direction string
	DLC       int
	CycleMS   int
	Signals   []SignalDef
}

// Signal looks up a signal by name.
func (fd *FrameDef) Signal(name string) (SignalDef, bool) {
	for _, s := range fd.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

// CANMap indexes the frame layout by ID and by name.
type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

// FrameNames returns the known frame names in sorted order.
func (m *CANMap) FrameNames() []string {
	names := make([]string, 0, len(m.ByName))
	for name := range m.ByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
