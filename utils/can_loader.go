package utils

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

//go:embed line_map.csv
var defaultLineMap []byte

// DefaultCANMap returns the built-in layout of the sensor and steering frames.
func DefaultCANMap() (*CANMap, error) {
	return ParseCANMap(bytes.NewReader(defaultLineMap))
}

func LoadCANMap(csvPath string) (*CANMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCANMap(f)
}

// ParseCANMap reads a CAN map CSV, one row per signal.
func ParseCANMap(in io.Reader) (*CANMap, error) {
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true
	r.Comment = '#'

	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	req := []string{
		"direction", "frame_id", "frame_name", "cycle_ms", "dlc",
		"signal_name", "start_bit", "bit_length", "endianness",
		"signed", "factor", "offset", "min", "max", "default", "unit", "comment",
	}
	for _, k := range req {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("can map missing required column: %q", k)
		}
	}

	m := &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		p := rowParser{rec: rec, idx: idx}

		frameID := p.asID("frame_id")
		frameName := p.asStr("frame_name")
		direction := strings.ToLower(p.asStr("direction"))
		cycleMS := p.asInt("cycle_ms")
		dlc := p.asInt("dlc")

		sig := SignalDef{
			Name:       p.asStr("signal_name"),
			StartBit:   p.asInt("start_bit"),
			BitLength:  p.asInt("bit_length"),
			Endianness: p.asStr("endianness"),
			Signed:     p.asBool("signed"),
			Factor:     p.asFloat("factor"),
			Offset:     p.asFloat("offset"),
			Min:        p.asFloat("min"),
			Max:        p.asFloat("max"),
			Default:    p.asFloat("default"),
			Unit:       p.asStr("unit"),
			Comment:    p.asStr("comment"),
		}
		if p.err != nil {
			return nil, fmt.Errorf("can map line %d: %w", line, p.err)
		}

		if sig.Endianness != "" && sig.Endianness != "little" {
			return nil, fmt.Errorf("frame %s signal %s: unsupported endianness %q (only little supported)",
				frameName, sig.Name, sig.Endianness)
		}
		if direction != DirectionRX && direction != DirectionTX {
			return nil, fmt.Errorf("frame %s: direction must be %s or %s, got %q",
				frameName, DirectionRX, DirectionTX, direction)
		}
		if dlc <= 0 || dlc > 8 {
			return nil, fmt.Errorf("frame %s (0x%X): invalid dlc %d", frameName, frameID, dlc)
		}
		if sig.BitLength <= 0 || sig.StartBit < 0 || sig.StartBit+sig.BitLength > dlc*8 {
			return nil, fmt.Errorf("frame %s signal %s: bits [%d,%d) do not fit dlc %d",
				frameName, sig.Name, sig.StartBit, sig.StartBit+sig.BitLength, dlc)
		}

		fd, ok := m.ByID[frameID]
		if !ok {
			fd = &FrameDef{
				ID:        frameID,
				Name:      frameName,
				DLC:       dlc,
				Direction: direction,
				CycleMS:   cycleMS,
				Signals:   []SignalDef{},
			}
			m.ByID[frameID] = fd
			m.ByName[frameName] = fd
		}

		if fd.DLC != dlc {
			return nil, fmt.Errorf("frame %s (0x%X) has inconsistent DLC (%d vs %d)", frameName, frameID, fd.DLC, dlc)
		}

		fd.Signals = append(fd.Signals, sig)
	}

	for _, fd := range m.ByID {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
	}

	return m, nil
}

func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}

// rowParser reads typed columns from one CSV record, keeping the first error.
type rowParser struct {
	rec []string
	idx map[string]int
	err error
}

func (p *rowParser) asStr(col string) string {
	i := p.idx[col]
	if i >= len(p.rec) {
		return ""
	}
	return strings.TrimSpace(p.rec[i])
}

func (p *rowParser) fail(col, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: invalid value %q: %w", col, val, err)
	}
}

func (p *rowParser) asInt(col string) int {
	s := p.asStr(col)
	v, err := strconv.Atoi(s)
	if err != nil {
		p.fail(col, s, err)
	}
	return v
}

func (p *rowParser) asFloat(col string) float64 {
	s := p.asStr(col)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(col, s, err)
	}
	return v
}

func (p *rowParser) asBool(col string) bool {
	switch strings.ToLower(p.asStr(col)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func (p *rowParser) asID(col string) uint32 {
	s := p.asStr(col)
	ss, base := s, 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		p.fail(col, s, err)
	}
	return uint32(u)
}
