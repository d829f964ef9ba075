package utils

import (
	"fmt"

	"go.einride.tech/can"
)

// EncodeFrame packs values into the named frame. Signals missing from values
// take their default.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) (can.Frame, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return can.Frame{}, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return can.Frame{}, fmt.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	f := can.Frame{ID: fd.ID, Length: uint8(fd.DLC)}
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		raw := physToRaw(s, v)
		if s.Signed {
			f.Data.SetSignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength), raw)
		} else {
			f.Data.SetUnsignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength), uint64(raw))
		}
	}
	return f, nil
}

// DecodeFrame unpacks every signal of a known frame into physical values.
func (m *CANMap) DecodeFrame(frame can.Frame) (map[string]float64, error) {
	fd, err := m.FrameByID(frame.ID)
	if err != nil {
		return nil, err
	}
	if int(frame.Length) < fd.DLC {
		return nil, fmt.Errorf("frame 0x%X expects DLC %d, got %d", frame.ID, fd.DLC, frame.Length)
	}

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		var raw int64
		if s.Signed {
			raw = frame.Data.SignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength))
		} else {
			raw = int64(frame.Data.UnsignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength)))
		}
		out[s.Name] = rawToPhys(s, raw)
	}
	return out, nil
}
