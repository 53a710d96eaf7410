// Command splatserve serves the splat viewer API and offers maintenance
// subcommands for share links, cloud files and the usage counter.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "splatserve",
		Usage:   "photo to 3D splat relay and viewer server",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"SPLATVIEW_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			shareCommand(),
			inspectCommand(),
			convertCommand(),
			usageCommand(),
		},
	}
}
