// Package mcp2221 holds the bus interfaces shared by the MCP2221 bridge driver
// and the native host buses.
package mcp2221

import (
	"context"
	"errors"
	"time"

	"github.com/mklimuk/mcp2221/codec"
)

var ErrBusBusy = errors.New("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// RegisterReader reads size bytes after writing reg, without releasing the
// bus in between.
type RegisterReader interface {
	ReadRegister(ctx context.Context, address byte, reg []byte, size int) ([]byte, error)
}

// Transactor gives full control over transfer framing. Only the USB bridge
// implements it; native buses cannot end a write without STOP.
type Transactor interface {
	I2CBus
	RegisterReader
	Write(ctx context.Context, address byte, data []byte, kind codec.TransferKind, timeout time.Duration) error
	Read(ctx context.Context, address byte, size int, kind codec.TransferKind, timeout time.Duration) ([]byte, error)
	SetSpeed(ctx context.Context, hz uint32) error
}
