package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/forro/internal/shared"
)

// Setup writes config.toml from the embedded template when it is missing and initializes the record store.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return err
		}
		r.writePlain("%s Config written to %s\n", r.palette.OK("✓"), r.configPath)

		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return err
		}
		if err := config.ApplyEnv(); err != nil {
			return err
		}
		r.config = config
		r.store = nil
	} else {
		r.writePlain("%s Using config %s\n", r.palette.OK("✓"), r.configPath)
	}

	r.logger.Info("initializing record store", "driver", r.config.Store.Driver, "path", r.config.Store.Path())
	store, err := r.pairStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	pairs, err := store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load track pairs: %w", err)
	}

	r.writePlain("%s Store ready at %s (%d pairs)\n", r.palette.OK("✓"), store.Location(), len(pairs))
	if r.config.Credentials.Spotify.Token() == nil {
		r.writePlain("\nNext steps:\n")
		r.writePlain("1. Set your Spotify client_id and client_secret in %s\n", r.configPath)
		r.writePlain("2. Run 'forro auth' to authorize playlist access\n")
	}
	return nil
}
