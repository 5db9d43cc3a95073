// Package cmd is the CLI entry point for the event-bus demo binary:
// basic/bench/scale are self-contained driver programs; serve runs the
// long-lived process bridging the bus to HTTP and AMQP.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/flowmesh/partbus/internal/config"
)

const (
	ServiceName      = "partbus"
	ServiceNamespace = "flowmesh"
)

var (
	version    = "0.0.0"
	commit     = "hash"
	commitDate = time.Now().String()
	branch     = "branch"
)

// Run parses os.Args and dispatches to the selected subcommand.
func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "Partitioned in-process publish-subscribe event bus demos",
		Commands: []*cli.Command{
			basicCmd(),
			benchCmd(),
			scaleCmd(),
			serveCmd(),
		},
	}

	return app.Run(os.Args)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "config_file",
		Usage: "Path to the configuration file",
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	flags := pflag.NewFlagSet(c.Command.Name, pflag.ContinueOnError)
	return config.Load(c.String("config_file"), flags)
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the long-lived demo server, bridging the bus to HTTP and AMQP",
		Flags:   []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			app := NewApp(cfg)
			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("shutting down...")
			return app.Stop(context.Background())
		},
	}
}

func printErr(err error) {
	fmt.Fprintln(os.Stderr, err)
}
