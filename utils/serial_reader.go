package utils

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// serialPollInterval bounds how long a read blocks before the context is rechecked.
const serialPollInterval = 100 * time.Millisecond

// SerialFrameReader reads sensor frames from the vehicle's debug UART.
type SerialFrameReader struct {
	port serial.Port
	text *TextFrameReader
}

func OpenSerialFrameReader(portName string, baud int) (*SerialFrameReader, error) {
	if baud <= 0 {
		baud = 115200
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(serialPollInterval); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serial read timeout: %w", err)
	}
	return &SerialFrameReader{port: port, text: NewTextFrameReader(port)}, nil
}

func (s *SerialFrameReader) ReadFrame(ctx context.Context) ([SensorChannels]float64, error) {
	return s.text.ReadFrame(ctx)
}

// Skipped returns the number of non-frame debug lines seen.
func (s *SerialFrameReader) Skipped() int {
	return s.text.Skipped()
}

func (s *SerialFrameReader) Close() error {
	return s.port.Close()
}
