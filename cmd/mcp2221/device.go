package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/mcp2221"
	"github.com/mklimuk/mcp2221/adapter"
	"github.com/mklimuk/mcp2221/cmd/mcp2221/console"
	"github.com/mklimuk/mcp2221/i2c"
	"github.com/mklimuk/mcp2221/mcpctx"
)

const (
	adapterBridge = "mcp2221"
	adapterNative = "native"
)

func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx := mcpctx.SetVerbose(c.Context, c.Bool("verbose"))
	ctx = mcpctx.SetCaller(ctx, c.Command.FullName())
	return context.WithTimeout(ctx, c.Duration("timeout"))
}

func identity(c *cli.Context) adapter.Identity {
	return adapter.Identity{
		VendorID:  uint16(c.Uint("vid")),
		ProductID: uint16(c.Uint("pid")),
		Serial:    c.String("serial"),
		Path:      c.String("path"),
	}
}

func deviceOpts(c *cli.Context) []adapter.Opt {
	return []adapter.Opt{
		adapter.WithSpeed(uint32(c.Uint("speed"))),
		adapter.WithWatchdog(c.Duration("watchdog")),
	}
}

// withDevice runs fn with a connection to the selected bridge.
func withDevice(c *cli.Context, fn func(ctx context.Context, d *adapter.Handle) error) error {
	ctx, cancel := commandContext(c)
	defer cancel()
	d, err := adapter.DefaultRegistry.Acquire(ctx, identity(c), deviceOpts(c)...)
	if err != nil {
		return console.Exit(1, "could not open bridge: %v", err)
	}
	defer d.Close()
	return fn(ctx, d)
}

// withBus runs fn with the bus selected by --adapter.
func withBus(c *cli.Context, fn func(ctx context.Context, bus mcp2221.I2CBus) error) error {
	switch c.String("adapter") {
	case adapterBridge:
		return withDevice(c, func(ctx context.Context, d *adapter.Handle) error {
			return fn(ctx, d)
		})
	case adapterNative:
		ctx, cancel := commandContext(c)
		defer cancel()
		bus, err := i2c.NewGenericBus(c.String("bus"))
		if err != nil {
			return console.Exit(1, "could not open native bus: %v", err)
		}
		defer bus.Close()
		return fn(ctx, bus)
	default:
		return console.Exit(1, "unknown adapter %q", c.String("adapter"))
	}
}

func printYAML(v interface{}) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	err := enc.Encode(v)
	if err != nil {
		return console.Exit(1, "encoding error: %v", err)
	}
	return enc.Close()
}

func parseAddress(s string) (byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 1 || b[0] > 0x7F {
		return 0, fmt.Errorf("%q is not a 7-bit hex address", s)
	}
	return b[0], nil
}

func parseArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return console.Exit(1, "expected %d arguments, got %d", n, c.NArg())
	}
	return nil
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}
