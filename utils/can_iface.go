package utils

import (
	"context"

	"go.einride.tech/can"
)

// CANReader defines the interface for reading CAN frames
type CANReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}
