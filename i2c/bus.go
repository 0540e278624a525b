// Package i2c connects the bridge driver with periph.io: native host buses
// behind the mcp2221 bus interfaces and attached bridges in the i2creg
// registry.
package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/mcp2221"
)

var (
	_ mcp2221.I2CBus         = &GenericBus{}
	_ mcp2221.RegisterReader = &GenericBus{}
)

// GenericBus is any periph.io bus, usually a native one of the host board.
type GenericBus struct {
	bus i2c.BusCloser
}

// NewGenericBus loads the host drivers and opens dev by name, alias or
// number. An empty dev opens the first bus registered.
func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return WrapBus(bus), nil
}

// WrapBus adapts an open periph.io bus.
func WrapBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

func (b *GenericBus) String() string {
	return b.bus.String()
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// ReadRegister relies on the host driver to issue a repeated START between
// the write and the read.
func (b *GenericBus) ReadRegister(ctx context.Context, address byte, reg []byte, size int) ([]byte, error) {
	buffer := make([]byte, size)
	err := b.bus.Tx(uint16(address), reg, buffer)
	if err != nil {
		return nil, fmt.Errorf("could not read register %x of %x: %w", reg, address, err)
	}
	return buffer, nil
}

func (b *GenericBus) SetSpeed(hz uint32) error {
	return b.bus.SetSpeed(physic.Frequency(hz) * physic.Hertz)
}

// Release is a no-op; host drivers end every transaction with STOP.
func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}

// Buses lists the buses known to i2creg, loading host drivers first.
func Buses() ([]*i2creg.Ref, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	return i2creg.All(), nil
}
