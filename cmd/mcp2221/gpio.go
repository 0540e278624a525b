package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mcp2221/adapter"
	"github.com/mklimuk/mcp2221/cmd/mcp2221/console"
	"github.com/mklimuk/mcp2221/codec"
)

var gpioCmd = cli.Command{
	Name:  "gpio",
	Usage: "general purpose pins GP0..GP3",
	Subcommands: cli.Commands{
		&gpioGetCmd,
		&gpioSetCmd,
		&gpioModeCmd,
		&gpioDesignateCmd,
	},
}

var gpioGetCmd = cli.Command{
	Name:  "get",
	Usage: "print pin functions and live values",
	Action: func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			sram, err := d.ReadSRAM(ctx)
			if err != nil {
				return console.Exit(1, "could not read settings: %v", err)
			}
			values, err := d.ReadGPIO(ctx)
			if err != nil {
				return console.Exit(1, "could not read pins: %v", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 10, 0, 1, ' ', 0)
			_, _ = fmt.Fprintf(w, "PIN\tFUNCTION\tMODE\tVALUE\n")
			for i, v := range values {
				value := "-"
				if v.Mode != codec.GPIOModeNoOperation {
					value = fmt.Sprint(v.Value)
				}
				_, _ = fmt.Fprintf(w, "GP%d\t%s\t%s\t%s\n", i, sram.GP[i].Function, v.Mode, value)
			}
			_ = w.Flush()
			return nil
		})
	},
}

func parsePin(s string) (int, error) {
	pin, err := parseUint(strings.TrimPrefix(strings.ToUpper(s), "GP"), 8)
	if err != nil || pin >= codec.PinCount {
		return 0, fmt.Errorf("%q is not a pin (GP0..GP3)", s)
	}
	return int(pin), nil
}

var gpioSetCmd = cli.Command{
	Name:      "set",
	Usage:     "drive an output pin",
	ArgsUsage: "PIN 0|1",
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 2); err != nil {
			return err
		}
		pin, err := parsePin(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		value, err := parseUint(c.Args().Get(1), 1)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			if err := d.SetPin(ctx, pin, byte(value)); err != nil {
				return console.Exit(1, "could not set GP%d: %v", pin, err)
			}
			return nil
		})
	},
}

var gpioModeCmd = cli.Command{
	Name:      "mode",
	Usage:     "set the direction of a GPIO pin",
	ArgsUsage: "PIN in|out",
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 2); err != nil {
			return err
		}
		pin, err := parsePin(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		var mode codec.GPIOMode
		switch strings.ToLower(c.Args().Get(1)) {
		case "in", "input":
			mode = codec.GPIOModeIn
		case "out", "output":
			mode = codec.GPIOModeOut
		default:
			return console.Exit(1, "mode must be in or out")
		}
		var u codec.GPIOUpdate
		u.Mode[pin] = &mode
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			if err := d.WriteGPIO(ctx, u); err != nil {
				return console.Exit(1, "could not set GP%d mode: %v", pin, err)
			}
			return nil
		})
	},
}

var gpioDesignateCmd = cli.Command{
	Name:      "designate",
	Usage:     "assign a function to a pin until the next reset",
	ArgsUsage: "PIN FUNCTION",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "input", Usage: "GPIO function only: configure as input"},
		&cli.BoolFlag{Name: "high", Usage: "GPIO function only: initial output high"},
	},
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 2); err != nil {
			return err
		}
		pin, err := parsePin(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		des, err := codec.ParseDesignation(pin, c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		gp := codec.GPSetting{Designation: des, Mode: codec.GPIOModeOut}
		if c.Bool("input") {
			gp.Mode = codec.GPIOModeIn
		}
		if c.Bool("high") {
			gp.Value = 1
		}
		var update [codec.PinCount]*codec.GPSetting
		update[pin] = &gp
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			if err := d.ConfigureGP(ctx, update); err != nil {
				return console.Exit(1, "could not configure GP%d: %v", pin, err)
			}
			return nil
		})
	},
}
