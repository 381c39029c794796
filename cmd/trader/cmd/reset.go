package cmd

import (
	"context"
	"errors"
	"fmt"

	"paper-trade-bot-go/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all trades and positions and restore the starting balance",
	Long: `Reset clears trades, positions, equity history and cached candles and funds
the account with trading.starting_balance from the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return errors.New("reset deletes the whole trading history; pass --yes to confirm")
		}

		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		starting := decimal.NewFromFloat(a.cfg.Trading.StartingBalance)
		if err := resetAccount(ctx, a.store, a.ledger, starting); err != nil {
			return err
		}
		a.log.Info("Account reset", zap.String("starting_balance", starting.StringFixed(2)))
		fmt.Printf("Account reset to %s %s\n", starting.StringFixed(2), a.cfg.Trading.QuoteCurrency)
		return nil
	},
}

// accountResetter clears the durable account.
type accountResetter interface {
	Reset(ctx context.Context, startingBalance decimal.Decimal) error
}

// resetAccount resets the store and then the in-memory ledger. The ledger is
// left untouched when the store reset fails.
func resetAccount(ctx context.Context, store accountResetter, l *ledger.State, starting decimal.Decimal) error {
	if err := store.Reset(ctx, starting); err != nil {
		return fmt.Errorf("failed to reset account: %w", err)
	}
	l.ResetTo(starting)
	return nil
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVarP(&resetConfirmed, "yes", "y", false, "confirm the reset")
}
