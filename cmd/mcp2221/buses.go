package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mcp2221/adapter"
	"github.com/mklimuk/mcp2221/cmd/mcp2221/console"
	"github.com/mklimuk/mcp2221/i2c"
)

var busesCmd = cli.Command{
	Name:  "buses",
	Usage: "list native host buses and attached bridges as periph.io sees them",
	Action: func(c *cli.Context) error {
		names, err := i2c.RegisterBridges(adapter.DefaultRegistry, deviceOpts(c)...)
		if err != nil {
			console.Warnf("bridges not registered: %v", err)
		}
		defer func() {
			_ = i2c.UnregisterBridges(names)
		}()
		refs, err := i2c.Buses()
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		w := tabwriter.NewWriter(os.Stdout, 16, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "NAME\tALIASES\tNUMBER\n")
		for _, ref := range refs {
			number := "-"
			if ref.Number >= 0 {
				number = fmt.Sprint(ref.Number)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", ref.Name, strings.Join(ref.Aliases, ","), number)
		}
		_ = w.Flush()
		return nil
	},
}
