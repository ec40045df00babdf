package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/RugileVa/TiGets/internal/di"
	"github.com/RugileVa/TiGets/pkg/logger"
)

// NewDepositCommand creates the deposit command
func NewDepositCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <username> <amount>",
		Short: "Credit a user's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(rootOpts, "deposit")
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

			container := di.NewContainer(&di.ContainerConfig{DB: db, Config: cfg})
			user, err := container.AuthService.Deposit(ctx, args[0], amount)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %s\n", user.Username, user.Balance.StringFixed(2))
			return nil
		},
	}
}

// parseAmount accepts positive amounts with at most two decimal places
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("amount must have at most 2 decimal places")
	}
	return amount, nil
}
