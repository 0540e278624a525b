package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mcp2221/adapter"
	"github.com/mklimuk/mcp2221/cmd/mcp2221/console"
	"github.com/mklimuk/mcp2221/codec"
)

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "print the full chip status report",
	Action: func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			status, err := d.Status(ctx)
			if err != nil {
				return console.Exit(1, "adapter communication error: %v", err)
			}
			return printYAML(status)
		})
	},
}

type healthReport struct {
	Device deviceRef       `yaml:"device"`
	I2C    codec.I2CStatus `yaml:"i2c"`
	Dirty  bool            `yaml:"dirty"`
	Speed  uint32          `yaml:"speed_hz"`
}

type deviceRef struct {
	Path   string `yaml:"path"`
	Serial string `yaml:"serial"`
}

var healthCmd = cli.Command{
	Name:  "health",
	Usage: "poll the I2C engine",
	Action: func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			st, err := d.Health(ctx)
			if err != nil {
				return console.Exit(1, "adapter communication error: %v", err)
			}
			info := d.Info()
			return printYAML(healthReport{
				Device: deviceRef{Path: info.Path, Serial: info.Serial},
				I2C:    st,
				Dirty:  d.Dirty(),
				Speed:  codec.DividerSpeed(st.SpeedDivider),
			})
		})
	},
}

var releaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current transfer and check the bus lines",
	Action: func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			err := d.Release(ctx)
			if err != nil {
				return console.Exit(1, "could not release bus: %v", err)
			}
			st, err := d.Health(ctx)
			if err != nil {
				return console.Exit(1, "adapter communication error: %v", err)
			}
			console.PInfof(console.PictoOK, "bus released")
			return printYAML(st)
		})
	},
}

var resetCmd = cli.Command{
	Name:  "reset",
	Usage: "reboot the chip and wait until it enumerates again",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
		&cli.DurationFlag{Name: "wait", Value: 5 * time.Second, Usage: "how long to wait for the chip"},
	},
	Action: func(c *cli.Context) error {
		ok, err := console.Confirm("reset the bridge?", c.Bool("yes"))
		if err != nil {
			return console.Exit(1, "prompt error: %v", err)
		}
		if !ok {
			console.PInfof(console.PictoStop, "aborted")
			return nil
		}
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			err := d.Reset(ctx, c.Duration("wait"))
			if err != nil {
				return console.Exit(1, "reset failed: %v", err)
			}
			console.PInfof(console.PictoOK, "bridge %s is back", d.Info().Serial)
			return nil
		})
	},
}
