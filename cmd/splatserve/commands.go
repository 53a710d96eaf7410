package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/seqsense/splatview/cloud"
	"github.com/seqsense/splatview/config"
	"github.com/seqsense/splatview/frame"
	"github.com/seqsense/splatview/relay"
	"github.com/seqsense/splatview/server"
	"github.com/seqsense/splatview/usage"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"))
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides server.addr"},
			&cli.StringFlag{Name: "static", Usage: "viewer asset directory, overrides server.static_dir"},
		},
		Action: func(c *cli.Context) (err error) {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("addr") {
				cfg.Server.Addr = c.String("addr")
			}
			if c.IsSet("static") {
				cfg.Server.StaticDir = c.String("static")
			}

			logger, closeLog := config.NewLogger(cfg.Log)
			defer closeLog()

			counter, err := usage.New(cfg.Usage, logger)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, counter.Close())
			}()

			if cfg.Relay.Endpoint == "" {
				logger.Warn("relay.endpoint is not set, uploads will be refused")
			}
			srv, err := server.New(server.Options{
				Server:     cfg.Server,
				Viewer:     cfg.Viewer,
				Share:      cfg.Share,
				Counter:    counter,
				Relay:      relay.New(cfg.Relay, &http.Client{}, logger),
				HTTPClient: &http.Client{},
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			logger.Info("starting splatserve",
				zap.String("version", version),
				zap.String("usage_backend", string(cfg.Usage.Backend)),
				zap.Int64("usage_limit", cfg.Usage.Limit),
			)
			return srv.ListenAndServe(c.Context)
		},
	}
}

func shareCommand() *cli.Command {
	return &cli.Command{
		Name:  "share",
		Usage: "encode or decode share tokens",
		Subcommands: []*cli.Command{
			{
				Name:      "encode",
				Usage:     "print the share token and path of a cloud URL",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if c.NArg() != 1 {
						return cli.Exit("share encode needs exactly one url", 2)
					}
					token, err := cfg.Share.Encode(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
			{
				Name:      "decode",
				Usage:     "print the cloud URL carried by a share token",
				ArgsUsage: "<token>",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if c.NArg() != 1 {
						return cli.Exit("share decode needs exactly one token", 2)
					}
					u, err := cfg.Share.Decode(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, u)
					return nil
				},
			},
		},
	}
}

func decodeFile(path string) (*cloud.Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if fmtName := cloud.FormatFromName(path); fmtName != cloud.FormatUnknown {
		return cloud.DecodeFormat(f, fmtName)
	}
	return cloud.Decode(f)
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print bounds and home camera of a cloud file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "trim", Usage: "fraction of points ignored on each side of every axis"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("inspect needs exactly one file", 2)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			opts := cfg.Viewer
			if c.IsSet("trim") {
				opts.Trim = c.Float64("trim")
			}
			cl, err := decodeFile(c.Args().First())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(server.Inspect(cl, opts))
		},
	}
}

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "convert a PLY or PCD cloud into the .splat container",
		ArgsUsage: "<input> <output.splat>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "normalize", Usage: "center and rescale the cloud like the viewer does"},
		},
		Action: func(c *cli.Context) (err error) {
			if c.NArg() != 2 {
				return cli.Exit("convert needs an input and an output file", 2)
			}
			cl, err := decodeFile(c.Args().Get(0))
			if err != nil {
				return err
			}
			if c.Bool("normalize") {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				frame.Normalize(cl, cfg.Viewer)
			}

			out, err := os.Create(c.Args().Get(1))
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, out.Close())
			}()
			if err := cloud.EncodeSplat(out, cl); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "wrote %d splats\n", cl.Len())
			return nil
		},
	}
}

func usageCommand() *cli.Command {
	withCounter := func(c *cli.Context, fn func(usage.Counter) error) (err error) {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		counter, err := usage.New(cfg.Usage, zap.NewNop())
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, counter.Close())
		}()
		return fn(counter)
	}
	return &cli.Command{
		Name:  "usage",
		Usage: "inspect or reset the shared usage counter",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print used, limit and remaining",
				Action: func(c *cli.Context) error {
					return withCounter(c, func(counter usage.Counter) error {
						q, err := counter.Peek(c.Context)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "used=%d limit=%d remaining=%d\n", q.Used, q.Limit, q.Remaining)
						if !q.ResetAt.IsZero() {
							fmt.Fprintf(c.App.Writer, "reset_at=%s\n", q.ResetAt.UTC().Format("2006-01-02T15:04:05Z"))
						}
						return nil
					})
				},
			},
			{
				Name:  "reset",
				Usage: "set the count back to zero",
				Action: func(c *cli.Context) error {
					return withCounter(c, func(counter usage.Counter) error {
						if err := counter.Reset(c.Context); err != nil {
							return err
						}
						fmt.Fprintln(c.App.Writer, "usage counter reset")
						return nil
					})
				},
			},
		},
	}
}
