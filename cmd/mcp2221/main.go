package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/mcp2221/adapter"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "mcp2221"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "MCP2221 USB to I2C/GPIO bridge cli"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "enable debug logging and frame dumps",
		},
		&cli.StringFlag{
			Name:    "serial",
			Aliases: []string{"s"},
			Usage:   "serial number of the bridge, required when more than one is attached",
			EnvVars: []string{"MCP2221_SERIAL"},
		},
		&cli.StringFlag{
			Name:  "path",
			Usage: "HID path of the bridge, for chips without a serial number",
		},
		&cli.UintFlag{
			Name:  "vid",
			Usage: "USB vendor ID, 0 for the Microchip default",
		},
		&cli.UintFlag{
			Name:  "pid",
			Usage: "USB product ID, 0 for the Microchip default",
		},
		&cli.UintFlag{
			Name:  "speed",
			Usage: "I2C bus speed in Hz applied on open, 0 keeps the current one",
		},
		&cli.DurationFlag{
			Name:  "watchdog",
			Usage: "I2C transfer watchdog",
			Value: adapter.DefaultWatchdog,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "overall command timeout",
			Value: 10 * time.Second,
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "I2C adapter for plain transfers: mcp2221 or native",
			Value:   adapterBridge,
		},
		&cli.StringFlag{
			Name:  "bus",
			Usage: "native bus name, alias or number (with --adapter native)",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		&usbCmd,
		&statusCmd,
		&healthCmd,
		&releaseCmd,
		&resetCmd,
		&i2cCmd,
		&gpioCmd,
		&adcCmd,
		&dacCmd,
		&clockCmd,
		&flashCmd,
		&busesCmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return 1
	}
	return 0
}
