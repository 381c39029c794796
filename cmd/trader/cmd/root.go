package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Paper trading bot for crypto spot markets",
	Long: `Trader simulates spot trading against live public market data.

Orders fill at the current quote with a fee; cash, positions and every trade
are kept in a local SQLite database so a restarted bot continues where it
stopped. No real orders are ever sent to an exchange.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "./configs", "directory containing config.yml")
}
