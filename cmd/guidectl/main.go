package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"breakupguide/internal/logging"
)

func main() {
	logger := logging.New(os.Stderr, os.Getenv("LOG_LEVEL"))
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(NewRunner(logger, os.Stdout))
	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatal("command failed", "error", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "guidectl",
		Usage: "Maintenance tasks for the Breakup Guide server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(r),
			backupCommand(r),
			catalogCommand(r),
			libraryCommand(r),
			userCommand(r),
		},
	}
}
