package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var demoIterations int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a fixed number of trading iterations",
	Long: `Demo runs the trading loop for a fixed number of iterations and prints a
performance report. It uses the same account as run.

Example:
  trader demo --iterations 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if demoIterations <= 0 {
			return fmt.Errorf("--iterations must be positive, got %d", demoIterations)
		}
		return runTrading(demoIterations)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().IntVarP(&demoIterations, "iterations", "n", 10, "number of iterations to run")
}
