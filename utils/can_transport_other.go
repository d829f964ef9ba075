//go:build !linux && !darwin
// +build !linux,!darwin

package utils

import (
	"context"
	"errors"
)

var errNoSocketCAN = errors.New("socketcan is not available on this platform")

func NewSocketCANReader(ctx context.Context, ifname string) (CANReader, error) {
	return nil, errNoSocketCAN
}

func NewSocketCANWriter(ctx context.Context, iface string) (CANWriter, error) {
	return nil, errNoSocketCAN
}
