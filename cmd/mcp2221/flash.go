package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mcp2221/adapter"
	"github.com/mklimuk/mcp2221/cmd/mcp2221/console"
	"github.com/mklimuk/mcp2221/codec"
)

var flashCmd = cli.Command{
	Name:  "flash",
	Usage: "power-up settings and USB strings",
	Subcommands: cli.Commands{
		&flashInfoCmd,
		&flashWriteCmd,
	},
}

type flashInfo struct {
	Chip          codec.ChipConfig                `yaml:"chip"`
	GP            [codec.PinCount]codec.GPSetting `yaml:"gp"`
	Manufacturer  string                          `yaml:"manufacturer"`
	Product       string                          `yaml:"product"`
	Serial        string                          `yaml:"serial"`
	FactorySerial string                          `yaml:"factory_serial"`
}

var flashInfoCmd = cli.Command{
	Name:  "info",
	Usage: "print the flash contents",
	Action: func(c *cli.Context) error {
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			var info flashInfo
			var err error
			info.Chip, err = d.ReadChipSettings(ctx)
			if err != nil {
				return console.Exit(1, "could not read chip settings: %v", err)
			}
			info.GP, err = d.ReadGPSettings(ctx)
			if err != nil {
				return console.Exit(1, "could not read gp settings: %v", err)
			}
			for section, dst := range map[codec.FlashSection]*string{
				codec.FlashManufacturer:  &info.Manufacturer,
				codec.FlashProduct:       &info.Product,
				codec.FlashSerial:        &info.Serial,
				codec.FlashFactorySerial: &info.FactorySerial,
			} {
				*dst, err = d.ReadFlashString(ctx, section)
				if err != nil {
					return console.Exit(1, "could not read %s: %v", section, err)
				}
			}
			return printYAML(info)
		})
	},
}

var flashSections = map[string]codec.FlashSection{
	"manufacturer": codec.FlashManufacturer,
	"product":      codec.FlashProduct,
	"serial":       codec.FlashSerial,
}

var flashWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "store a USB descriptor string",
	ArgsUsage: "manufacturer|product|serial VALUE",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
		&cli.StringFlag{Name: "password", Usage: "access password of a protected flash", EnvVars: []string{"MCP2221_PASSWORD"}},
	},
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 2); err != nil {
			return err
		}
		section, ok := flashSections[c.Args().Get(0)]
		if !ok {
			return console.Exit(1, "unknown string %q", c.Args().Get(0))
		}
		value := c.Args().Get(1)
		ok, err := console.Confirm("write "+section.String()+" to flash?", c.Bool("yes"))
		if err != nil {
			return console.Exit(1, "prompt error: %v", err)
		}
		if !ok {
			console.PInfof(console.PictoStop, "aborted")
			return nil
		}
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			if c.IsSet("password") {
				if err := d.UnlockFlash(ctx, c.String("password")); err != nil {
					return console.Exit(1, "could not unlock flash: %v", err)
				}
			}
			if err := d.WriteFlashString(ctx, section, value); err != nil {
				return console.Exit(1, "could not write %s: %v", section, err)
			}
			console.PInfof(console.PictoOK, "%s stored, visible after the next enumeration", section)
			return nil
		})
	},
}
