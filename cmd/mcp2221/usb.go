package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mcp2221/adapter"
	"github.com/mklimuk/mcp2221/cmd/mcp2221/console"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "USB enumeration of bridges",
	Subcommands: cli.Commands{
		&usbDetectCmd,
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list attached bridges",
	Action: func(c *cli.Context) error {
		id := identity(c)
		devices, err := adapter.DefaultRegistry.Attached(id.VendorID, id.ProductID)
		if err != nil {
			return console.Exit(1, "could not list devices: %v", err)
		}
		if len(devices) == 0 {
			console.PInfof(console.PictoGhost, "no MCP2221 attached")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 16, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "SERIAL\tPATH\tRELEASE\tINTERFACE\tPRODUCT\n")
		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#04x\t%d\t%s\n",
				dev.Serial, dev.Path, dev.Release, dev.Interface, dev.Product)
		}
		_ = w.Flush()
		return nil
	},
}
