package adapter

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/mcp2221/codec"
)

var _ i2c.BusCloser = &PeriphBus{}

// PeriphBus exposes a bridge as a periph.io I2C bus.
type PeriphBus struct {
	dev   *MCP2221
	name  string
	close func() error
}

// NewPeriphBus wraps dev. closeFn runs on Close; nil closes dev.
func NewPeriphBus(dev *MCP2221, name string, closeFn func() error) *PeriphBus {
	if closeFn == nil {
		closeFn = dev.Close
	}
	return &PeriphBus{dev: dev, name: name, close: closeFn}
}

func (b *PeriphBus) String() string {
	return b.name
}

// Tx writes w then reads into r. When both are set the read follows a
// repeated START.
func (b *PeriphBus) Tx(addr uint16, w, r []byte) error {
	if addr > codec.MaxAddress {
		return invalid("address %#x is not a 7-bit address", addr)
	}
	ctx := context.Background()
	a := byte(addr)
	switch {
	case len(w) > 0 && len(r) > 0:
		data, err := b.dev.ReadRegister(ctx, a, w, len(r))
		if err != nil {
			return err
		}
		copy(r, data)
	case len(w) > 0:
		return b.dev.Write(ctx, a, w, codec.Regular, 0)
	case len(r) > 0:
		data, err := b.dev.Read(ctx, a, len(r), codec.Regular, 0)
		if err != nil {
			return err
		}
		copy(r, data)
	}
	return nil
}

func (b *PeriphBus) SetSpeed(f physic.Frequency) error {
	hz := f / physic.Hertz
	if hz <= 0 || hz > physic.Frequency(^uint32(0)) {
		return invalid("speed %s", f)
	}
	if err := b.dev.SetSpeed(context.Background(), uint32(hz)); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	return nil
}

func (b *PeriphBus) Close() error {
	return b.close()
}
