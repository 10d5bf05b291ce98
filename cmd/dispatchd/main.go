package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dispatchd/dispatchd/internal/app"
	"github.com/dispatchd/dispatchd/internal/config"
	"github.com/dispatchd/dispatchd/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	gofakeit.Seed(time.Now().UnixNano())

	cmd := &cli.Command{
		Name:    "dispatchd",
		Usage:   "Dispatchd - Priority dispatch daemon",
		Version: version.Version(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Sources: cli.EnvVars("CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the dispatch daemon",
				Action: runDaemon,
			},
			{
				Name:   "print",
				Usage:  "Demo: dispatch generated records to stdout until interrupted",
				Action: runPrint,
			},
			{
				Name:   "drain",
				Usage:  "Demo: drain a fixed backlog in priority order",
				Action: runDrain,
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Println(version.Version())
					return nil
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			// No command defaults to running the daemon
			if c.NArg() == 0 {
				return runDaemon(ctx, c)
			}
			return cli.ShowAppHelp(c)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runDaemon(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Parse(config.Flags{
		Config:   c.String("config"),
		LogLevel: c.String("log-level"),
	})
	if err != nil {
		return err
	}
	return app.New(cfg).Run(ctx)
}
