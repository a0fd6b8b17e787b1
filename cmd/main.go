package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/forro/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newApp(runner).Run(ctx, os.Args)
	stop()
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close store", "error", cerr)
	}

	switch {
	case err == nil:
		return
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrDuplicatePair):
		// already reported on stderr by the command
	default:
		logger.Error("application error", "error", err)
	}
	os.Exit(exitCode(err))
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "forro",
		Usage:   "Curate forró cover/original pairs and build a Spotify playlist from them",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("FORRO_CONFIG"),
			},
		},
		Before:   r.Configure,
		Commands: r.register(),
	}
}
