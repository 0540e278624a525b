package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mcp2221/adapter"
	"github.com/mklimuk/mcp2221/cmd/mcp2221/console"
	"github.com/mklimuk/mcp2221/codec"
)

var refFlag = &cli.StringFlag{
	Name:  "ref",
	Usage: "voltage reference: vdd, off, 1.024, 2.048 or 4.096",
}

var adcCmd = cli.Command{
	Name:  "adc",
	Usage: "read the ADC channels on GP1..GP3",
	Flags: []cli.Flag{refFlag},
	Action: func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			if c.IsSet("ref") {
				ref, err := codec.ParseVRef(c.String("ref"))
				if err != nil {
					return console.Exit(1, "%v", err)
				}
				if err := d.ConfigureADC(ctx, ref); err != nil {
					return console.Exit(1, "could not set ADC reference: %v", err)
				}
			}
			adc, err := d.ReadADC(ctx)
			if err != nil {
				return console.Exit(1, "adapter communication error: %v", err)
			}
			for i, v := range adc {
				console.Printf("ADC%d (GP%d): %d\n", i+1, i+1, v)
			}
			return nil
		})
	},
}

var dacCmd = cli.Command{
	Name:      "dac",
	Usage:     "set the DAC output (0..31)",
	ArgsUsage: "VALUE",
	Flags:     []cli.Flag{refFlag},
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 1); err != nil {
			return err
		}
		value, err := parseUint(c.Args().Get(0), 8)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		v := byte(value)
		u := codec.SRAMUpdate{DACValue: &v}
		if c.IsSet("ref") {
			ref, err := codec.ParseVRef(c.String("ref"))
			if err != nil {
				return console.Exit(1, "%v", err)
			}
			u.DACRef = &ref
		}
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			if err := d.ConfigureSRAM(ctx, u); err != nil {
				return console.Exit(1, "could not set DAC: %v", err)
			}
			return nil
		})
	},
}

var clockCmd = cli.Command{
	Name:  "clock",
	Usage: "configure the clock output (GP1 must be designated CLK_OUT)",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "hz", Value: 12_000_000, Usage: "48MHz divided by 2..128"},
		&cli.UintFlag{Name: "duty", Value: 50, Usage: "duty cycle: 0, 25, 50 or 75"},
	},
	Action: func(c *cli.Context) error {
		div, err := codec.ClockDividerFor(uint32(c.Uint("hz")))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		duty := c.Uint("duty")
		if duty%25 != 0 || duty > 75 {
			return console.Exit(1, "duty cycle %d is not one of 0, 25, 50, 75", duty)
		}
		out := codec.ClockOutput{Divider: div, Duty: codec.DutyCycle(duty / 25)}
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			if err := d.SetClockOutput(ctx, out); err != nil {
				return console.Exit(1, "could not set clock: %v", err)
			}
			console.PInfof(console.PictoOK, "clock output %d Hz", out.Hz())
			return nil
		})
	},
}
