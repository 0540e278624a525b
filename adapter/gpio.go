package adapter

import (
	"context"

	"github.com/mklimuk/mcp2221/codec"
)

// ReadGPIO returns the live value and direction of GP0..GP3. Pins assigned to
// another function report GPIOModeNoOperation.
func (d *MCP2221) ReadGPIO(ctx context.Context) (codec.GPIOValues, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.readGPIO(ctx)
}

func (d *MCP2221) readGPIO(ctx context.Context) (codec.GPIOValues, error) {
	res, err := d.command(ctx, "read GPIO values", codec.NewFrame(codec.OpGPIOGet))
	if err != nil {
		return codec.GPIOValues{}, err
	}
	return codec.DecodeGPIO(res), nil
}

// WriteGPIO changes output values and directions. Nil fields of u leave the
// pin untouched.
func (d *MCP2221) WriteGPIO(ctx context.Context, u codec.GPIOUpdate) error {
	for i := 0; i < codec.PinCount; i++ {
		if v := u.Value[i]; v != nil && *v > 1 {
			return invalid("GP%d value %d is not 0 or 1", i, *v)
		}
		if m := u.Mode[i]; m != nil && *m != codec.GPIOModeIn && *m != codec.GPIOModeOut {
			return invalid("GP%d mode %s", i, *m)
		}
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.command(ctx, "write GPIO values", codec.EncodeGPIOSet(u))
	return err
}

// SetPin drives one GPIO output.
func (d *MCP2221) SetPin(ctx context.Context, pin int, value byte) error {
	if pin < 0 || pin >= codec.PinCount {
		return invalid("pin GP%d", pin)
	}
	var u codec.GPIOUpdate
	u.Value[pin] = &value
	return d.WriteGPIO(ctx, u)
}
