package cmd

import (
	"context"
	"os"

	"paper-trade-bot-go/internal/report"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cash, open positions and equity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		acc, err := a.store.Account(ctx)
		if err != nil {
			return err
		}
		positions, err := a.store.Positions(ctx)
		if err != nil {
			return err
		}
		symbols := make([]string, 0, len(positions))
		for _, p := range positions {
			symbols = append(symbols, p.Symbol)
		}

		report.RenderAccount(os.Stdout, acc, positions, a.tracker.PriceLookup(ctx, symbols))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
