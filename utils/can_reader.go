//go:build linux || darwin
// +build linux darwin

package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// SocketCANReader implements CANReader using Einride's socketcan
type SocketCANReader struct {
	conn   net.Conn
	frames chan can.Frame
	done   chan struct{}
	quit   chan struct{}
	once   sync.Once
	err    error
}

// NewSocketCANReader dials ifname and starts receiving in the background.
func NewSocketCANReader(ctx context.Context, ifname string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", ifname)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}

	r := &SocketCANReader{
		conn:   conn,
		frames: make(chan can.Frame, 64),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
	}
	go r.receive(socketcan.NewReceiver(conn))
	return r, nil
}

func (r *SocketCANReader) receive(recv *socketcan.Receiver) {
	defer close(r.done)
	for recv.Receive() {
		select {
		case r.frames <- recv.Frame():
		case <-r.quit:
			r.err = net.ErrClosed
			return
		}
	}
	r.err = recv.Err()
	if r.err == nil {
		r.err = errors.New("socketcan receiver closed")
	}
}

// ReadFrame blocks until a frame arrives, the socket fails or ctx ends.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f := <-r.frames:
		return f, nil
	case <-r.done:
		select {
		case f := <-r.frames:
			return f, nil
		default:
		}
		return can.Frame{}, r.err
	}
}

// Close closes the CAN socket
func (r *SocketCANReader) Close() error {
	r.once.Do(func() { close(r.quit) })
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
