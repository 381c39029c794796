package cmd

import (
	"context"
	"os"

	"paper-trade-bot-go/internal/database"
	"paper-trade-bot-go/internal/report"

	"github.com/spf13/cobra"
)

var (
	tradesSymbol string
	tradesLimit  int
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List executed paper trades, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		trades, err := a.store.Trades(ctx, database.TradeFilter{Symbol: tradesSymbol, Limit: tradesLimit})
		if err != nil {
			return err
		}
		report.RenderTrades(os.Stdout, trades)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.Flags().StringVarP(&tradesSymbol, "symbol", "s", "", "only show trades of this symbol (e.g. BTC/USDT)")
	tradesCmd.Flags().IntVarP(&tradesLimit, "limit", "l", 50, "maximum number of trades (0 for all)")
}
