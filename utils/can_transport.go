//go:build linux || darwin
// +build linux darwin

package utils

import (
	"context"
	"fmt"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// SocketCANWriter transmits steering frames on a SocketCAN interface.
type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

func NewSocketCANWriter(ctx context.Context, ifname string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", ifname)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", ifname, err)
	}
	return &SocketCANWriter{conn: conn, tx: socketcan.NewTransmitter(conn)}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	if frame.Length > 8 {
		return fmt.Errorf("frame 0x%X: length %d exceeds classic CAN", frame.ID, frame.Length)
	}
	if err := w.tx.TransmitFrame(ctx, frame); err != nil {
		return fmt.Errorf("transmit 0x%X: %w", frame.ID, err)
	}
	return nil
}

func (w *SocketCANWriter) Close() error {
	if w.conn == nil {
		return nil
	}
	return w.conn.Close()
}
