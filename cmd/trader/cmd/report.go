package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print performance metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		return a.printReport(ctx, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
