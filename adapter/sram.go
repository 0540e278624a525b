package adapter

import (
	"context"

	"github.com/mklimuk/mcp2221/codec"
)

// ReadSRAM returns the runtime configuration. Voltage references set through
// this connection replace the values read back from the chip.
func (d *MCP2221) ReadSRAM(ctx context.Context) (codec.SRAMSettings, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	cur, err := d.readSRAM(ctx)
	if err != nil {
		return cur, err
	}
	return d.session.overlay(cur), nil
}

func (d *MCP2221) readSRAM(ctx context.Context) (codec.SRAMSettings, error) {
	res, err := d.command(ctx, "read SRAM", codec.NewFrame(codec.OpSRAMGet))
	if err != nil {
		return codec.SRAMSettings{}, err
	}
	return codec.DecodeSRAM(res), nil
}

// ConfigureSRAM applies a partial runtime configuration in a single SRAM set
// command. Fields left nil keep their current value, including the voltage
// references and output levels the chip would reset on a GP change.
func (d *MCP2221) ConfigureSRAM(ctx context.Context, u codec.SRAMUpdate) error {
	if u.Empty() {
		return nil
	}
	if u.Clock != nil && !u.Clock.Valid() {
		return invalid("clock divider %d duty %d", u.Clock.Divider, u.Clock.Duty)
	}
	if u.DACValue != nil && *u.DACValue > 31 {
		return invalid("DAC value %d out of range 0-31", *u.DACValue)
	}
	for i, gp := range u.GP {
		if gp != nil && !gp.ValidFor(i) {
			return invalid("designation %d is not defined for GP%d", gp.Designation, i)
		}
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	cur, err := d.readSRAM(ctx)
	if err != nil {
		return err
	}
	cur = d.session.overlay(cur)
	var live codec.GPIOValues
	if u.ChangesGP() {
		live, err = d.readGPIO(ctx)
		if err != nil {
			return err
		}
	}
	if _, err := d.command(ctx, "write SRAM", codec.EncodeSRAMSet(u, cur, live)); err != nil {
		return err
	}
	dac, adc := u.DACRef, u.ADCRef
	if u.ChangesGP() {
		if dac == nil {
			dac = &cur.DACRef
		}
		if adc == nil {
			adc = &cur.ADCRef
		}
	}
	d.session.rememberRefs(dac, adc)
	return nil
}

// ConfigureGP assigns functions to pins, leaving the others as they are.
func (d *MCP2221) ConfigureGP(ctx context.Context, gp [codec.PinCount]*codec.GPSetting) error {
	return d.ConfigureSRAM(ctx, codec.SRAMUpdate{GP: gp})
}

// SetDAC sets the DAC output (0..31).
func (d *MCP2221) SetDAC(ctx context.Context, value byte) error {
	return d.ConfigureSRAM(ctx, codec.SRAMUpdate{DACValue: &value})
}

func (d *MCP2221) ConfigureDAC(ctx context.Context, ref codec.VRef) error {
	return d.ConfigureSRAM(ctx, codec.SRAMUpdate{DACRef: &ref})
}

func (d *MCP2221) ConfigureADC(ctx context.Context, ref codec.VRef) error {
	return d.ConfigureSRAM(ctx, codec.SRAMUpdate{ADCRef: &ref})
}

// SetClockOutput configures the CLK_OUT signal. GP1 must be designated as
// clock output for it to show.
func (d *MCP2221) SetClockOutput(ctx context.Context, c codec.ClockOutput) error {
	return d.ConfigureSRAM(ctx, codec.SRAMUpdate{Clock: &c})
}

// ConfigureInterrupt selects the edges raising the interrupt flag and
// optionally clears a pending one.
func (d *MCP2221) ConfigureInterrupt(ctx context.Context, c codec.InterruptConfig) error {
	return d.ConfigureSRAM(ctx, codec.SRAMUpdate{Interrupt: &c})
}
