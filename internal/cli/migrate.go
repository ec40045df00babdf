package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RugileVa/TiGets/migrations"
	"github.com/RugileVa/TiGets/pkg/logger"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, "migrate")
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			db, err := connectDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrations.Apply(ctx, db.Pool())
			if err != nil {
				return err
			}

			logger.Get().Info("migrations applied", zap.Strings("files", applied.Names))
			if len(applied.Names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, name := range applied.Names {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
}
