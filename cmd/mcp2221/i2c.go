package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mcp2221"
	"github.com/mklimuk/mcp2221/adapter"
	"github.com/mklimuk/mcp2221/cmd/mcp2221/console"
	"github.com/mklimuk/mcp2221/codec"
)

var i2cCmd = cli.Command{
	Name:  "i2c",
	Usage: "I2C transfers",
	Subcommands: cli.Commands{
		&i2cScanCmd,
		&i2cReadCmd,
		&i2cWriteCmd,
		&i2cRegisterCmd,
		&i2cSMBusCmd,
		&i2cSpeedCmd,
	},
}

var kindFlags = []cli.Flag{
	&cli.BoolFlag{Name: "restart", Usage: "start with a repeated START (bridge only)"},
	&cli.BoolFlag{Name: "nostop", Usage: "end the write without STOP (bridge only)"},
}

func transferKind(c *cli.Context) (codec.TransferKind, error) {
	switch {
	case c.Bool("restart") && c.Bool("nostop"):
		return 0, fmt.Errorf("--restart and --nostop are exclusive")
	case c.Bool("restart"):
		return codec.Restart, nil
	case c.Bool("nostop"):
		return codec.NoStop, nil
	}
	return codec.Regular, nil
}

var i2cScanCmd = cli.Command{
	Name:  "scan",
	Usage: "probe addresses with a one byte read",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "start", Value: "08"},
		&cli.StringFlag{Name: "stop", Value: "77"},
	},
	Action: func(c *cli.Context) error {
		start, err := parseAddress(c.String("start"))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		stop, err := parseAddress(c.String("stop"))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		var found []byte
		if c.String("adapter") == adapterBridge {
			err = withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
				found, err = d.Scan(ctx, start, stop)
				return err
			})
		} else {
			err = withBus(c, func(ctx context.Context, bus mcp2221.I2CBus) error {
				buf := make([]byte, 1)
				for a := int(start); a <= int(stop); a++ {
					if bus.ReadFromAddr(ctx, byte(a), buf) == nil {
						found = append(found, byte(a))
					}
				}
				return nil
			})
		}
		if err != nil {
			return console.Exit(1, "scan failed: %v", err)
		}
		if len(found) == 0 {
			console.PInfof(console.PictoGhost, "no devices found")
			return nil
		}
		for _, a := range found {
			console.PInfof(console.PictoPin, "%#02x", a)
		}
		return nil
	},
}

var i2cReadCmd = cli.Command{
	Name:      "read",
	Usage:     "read bytes from a target",
	ArgsUsage: "ADDR SIZE",
	Flags:     kindFlags,
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 2); err != nil {
			return err
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		size, err := parseUint(c.Args().Get(1), 16)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		kind, err := transferKind(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		var data []byte
		if kind != codec.Regular {
			err = withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
				data, err = d.Read(ctx, addr, int(size), kind, 0)
				return err
			})
		} else {
			err = withBus(c, func(ctx context.Context, bus mcp2221.I2CBus) error {
				data = make([]byte, size)
				return bus.ReadFromAddr(ctx, addr, data)
			})
		}
		if err != nil {
			return console.Exit(1, "read failed: %v", err)
		}
		console.Printf("%s", hex.Dump(data))
		return nil
	},
}

var i2cWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "write hex encoded bytes to a target",
	ArgsUsage: "ADDR HEXDATA",
	Flags:     kindFlags,
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 2); err != nil {
			return err
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		data, err := hex.DecodeString(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		kind, err := transferKind(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		if kind != codec.Regular {
			err = withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
				return d.Write(ctx, addr, data, kind, 0)
			})
		} else {
			err = withBus(c, func(ctx context.Context, bus mcp2221.I2CBus) error {
				return bus.WriteToAddr(ctx, addr, data)
			})
		}
		if err != nil {
			return console.Exit(1, "write failed: %v", err)
		}
		console.PInfof(console.PictoOK, "wrote %d bytes to %#02x", len(data), addr)
		return nil
	},
}

var i2cRegisterCmd = cli.Command{
	Name:      "reg",
	Usage:     "write a register address and read after a repeated START",
	ArgsUsage: "ADDR HEXREG SIZE",
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 3); err != nil {
			return err
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		reg, err := hex.DecodeString(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "could not decode register: %v", err)
		}
		size, err := parseUint(c.Args().Get(2), 16)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		var data []byte
		err = withBus(c, func(ctx context.Context, bus mcp2221.I2CBus) error {
			rr, ok := bus.(mcp2221.RegisterReader)
			if !ok {
				return fmt.Errorf("bus cannot read registers")
			}
			data, err = rr.ReadRegister(ctx, addr, reg, int(size))
			return err
		})
		if err != nil {
			return console.Exit(1, "register read failed: %v", err)
		}
		console.Printf("%s", hex.Dump(data))
		return nil
	},
}

var i2cSMBusCmd = cli.Command{
	Name:      "smbus",
	Usage:     "read or write a byte (or word) register the SMBus way through gobot",
	ArgsUsage: "ADDR REG [VALUE]",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "word", Aliases: []string{"w"}, Usage: "16-bit little-endian register"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 && c.NArg() != 3 {
			return console.Exit(1, "expected 2 or 3 arguments, got %d", c.NArg())
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		reg, err := parseUint(c.Args().Get(1), 8)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		bits := 8
		if c.Bool("word") {
			bits = 16
		}
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			a := adapter.NewGobotAdaptor(d.MCP2221, d.Identity().String(), func() error { return nil })
			conn, err := a.GetI2cConnection(int(addr), a.DefaultI2cBus())
			if err != nil {
				return console.Exit(1, "%v", err)
			}
			if c.NArg() == 3 {
				value, err := parseUint(c.Args().Get(2), bits)
				if err != nil {
					return console.Exit(1, "%v", err)
				}
				if bits == 16 {
					err = conn.WriteWordData(uint8(reg), uint16(value))
				} else {
					err = conn.WriteByteData(uint8(reg), uint8(value))
				}
				if err != nil {
					return console.Exit(1, "register write failed: %v", err)
				}
				return nil
			}
			var value uint16
			if bits == 16 {
				value, err = conn.ReadWordData(uint8(reg))
			} else {
				var b uint8
				b, err = conn.ReadByteData(uint8(reg))
				value = uint16(b)
			}
			if err != nil {
				return console.Exit(1, "register read failed: %v", err)
			}
			console.Printf("%#02x: %#04x\n", reg, value)
			return nil
		})
	},
}

var i2cSpeedCmd = cli.Command{
	Name:      "speed",
	Usage:     "set the bus clock",
	ArgsUsage: "HZ",
	Action: func(c *cli.Context) error {
		if err := parseArgs(c, 1); err != nil {
			return err
		}
		hz, err := parseUint(c.Args().Get(0), 32)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			if err := d.SetSpeed(ctx, uint32(hz)); err != nil {
				return console.Exit(1, "could not set speed: %v", err)
			}
			console.PInfof(console.PictoOK, "bus speed %d Hz", d.Speed())
			return nil
		})
	},
}
