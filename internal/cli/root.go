package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RugileVa/TiGets/pkg/config"
	"github.com/RugileVa/TiGets/pkg/database"
	"github.com/RugileVa/TiGets/pkg/logger"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	// EnvFile overrides the default .env lookup
	EnvFile string
}

// NewRootCommand creates the marketctl root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "marketctl",
		Short:         "Operate the TiGets ticket marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "path to an env file (defaults to ./.env)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewRelayCommand(opts))

	return cmd
}

// loadConfig reads configuration and initializes the global logger
func loadConfig(opts *RootOptions, component string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.EnvFile != "" {
		cfg, err = config.LoadWithPath(opts.EnvFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name + "-" + component,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*database.PostgresDB, error) {
	db, err := database.NewPostgres(ctx, database.FromConfig(cfg.Database, cfg.OTel.Enabled))
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}
