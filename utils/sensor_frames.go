package utils

import (
	"fmt"

	"go.einride.tech/can"
)

// SensorChannels is the number of channels split across the two sensor frames.
const SensorChannels = 8

const halfChannels = SensorChannels / 2

type sensorHalf struct {
	vals  [halfChannels]float64
	seq   int
	valid bool
}

// SensorFrameAssembler joins LINE_SENSOR_A and LINE_SENSOR_B frames carrying
// the same sequence counter into one 8-channel sample set.
//
// Not safe for concurrent use.
type SensorFrameAssembler struct {
	cmap  *CANMap
	idA   uint32
	idB   uint32
	halfs [2]sensorHalf
}

func NewSensorFrameAssembler(m *CANMap) (*SensorFrameAssembler, error) {
	a, err := m.FrameByName(FrameLineSensorA)
	if err != nil {
		return nil, err
	}
	b, err := m.FrameByName(FrameLineSensorB)
	if err != nil {
		return nil, err
	}
	return &SensorFrameAssembler{cmap: m, idA: a.ID, idB: b.ID}, nil
}

// Add feeds one received frame. complete is true when f finished a matching
// A/B pair; frames with other IDs are ignored.
func (s *SensorFrameAssembler) Add(f can.Frame) (samples [SensorChannels]float64, complete bool, err error) {
	var which, base int
	switch f.ID {
	case s.idA:
		which, base = 0, 0
	case s.idB:
		which, base = 1, halfChannels
	default:
		return samples, false, nil
	}

	vals, err := s.cmap.DecodeFrame(f)
	if err != nil {
		return samples, false, err
	}

	h := sensorHalf{seq: int(vals["seq"]), valid: true}
	for i := 0; i < halfChannels; i++ {
		v, ok := vals[fmt.Sprintf("ch%d", base+i)]
		if !ok {
			return samples, false, fmt.Errorf("frame 0x%X has no signal ch%d", f.ID, base+i)
		}
		h.vals[i] = v
	}
	s.halfs[which] = h

	// A half waiting for a different sequence can never complete once the
	// other side has moved on; keeping it would pair it after the counter wraps.
	other := &s.halfs[1-which]
	if !other.valid {
		return samples, false, nil
	}
	if other.seq != h.seq {
		*other = sensorHalf{}
		return samples, false, nil
	}

	a, b := s.halfs[0], s.halfs[1]
	copy(samples[:halfChannels], a.vals[:])
	copy(samples[halfChannels:], b.vals[:])
	s.halfs = [2]sensorHalf{}
	return samples, true, nil
}

// EncodeSensorFrames splits samples into the A and B frames. seq wraps at 16.
func (m *CANMap) EncodeSensorFrames(samples [SensorChannels]float64, seq int) ([2]can.Frame, error) {
	var out [2]can.Frame
	for half, name := range []string{FrameLineSensorA, FrameLineSensorB} {
		values := map[string]float64{"seq": float64(seq & 0xF)}
		for i := 0; i < halfChannels; i++ {
			ch := half*halfChannels + i
			values[fmt.Sprintf("ch%d", ch)] = samples[ch]
		}
		f, err := m.EncodeFrame(name, values)
		if err != nil {
			return out, err
		}
		out[half] = f
	}
	return out, nil
}

// SteerCommand is the payload of STEER_CMD
type SteerCommand struct {
	Output   float64
	Position float64
	Integral float64
	Turn     int
	Status   int
}

func (m *CANMap) EncodeSteerFrame(cmd SteerCommand) (can.Frame, error) {
	return m.EncodeFrame(FrameSteerCmd, map[string]float64{
		"output":   cmd.Output,
		"position": cmd.Position,
		"integral": cmd.Integral,
		"turn":     float64(cmd.Turn),
		"status":   float64(cmd.Status),
	})
}

func (m *CANMap) DecodeSteerFrame(f can.Frame) (SteerCommand, error) {
	vals, err := m.DecodeFrame(f)
	if err != nil {
		return SteerCommand{}, err
	}
	return SteerCommand{
		Output:   vals["output"],
		Position: vals["position"],
		Integral: vals["integral"],
		Turn:     int(vals["turn"]),
		Status:   int(vals["status"]),
	}, nil
}
