package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/festa/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the configured store and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = r.config
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}
	r.config = config

	r.logger.Info("initializing store", "driver", config.Database.Driver, "path", config.Database.Path)

	if err := r.open(ctx); err != nil {
		return err
	}
	r.logger.Infof("setup complete for %s store: %v", config.Database.Driver, config.Database.Path)
	return r.writePlain("✓ Store ready at %s\n", config.Database.Path)
}

// SetupConfig writes the default configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set auth.client_id in %s\n", path)
	r.writePlain("2. Run 'festa auth login'\n")
	return nil
}
