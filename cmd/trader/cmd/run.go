package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paper-trade-bot-go/internal/equity"
	"paper-trade-bot-go/internal/trader"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop until interrupted",
	Long: `Run polls market data every tick interval, evaluates the configured strategy
for each symbol and places paper orders. Equity is recorded on the configured
schedule. Stop with Ctrl+C; a performance report is printed on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrading(0)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runTrading wires the engine and runs it. iterations <= 0 runs until a
// shutdown signal is received.
func runTrading(iterations int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	engine, err := trader.NewEngine(a.log, a.cfg, a.tracker, a.executor)
	if err != nil {
		return err
	}

	scheduler, err := equity.NewScheduler(a.recorder, a.cfg.Equity.Schedule, a.log)
	if err != nil {
		return err
	}
	if _, err := a.recorder.Snapshot(ctx); err != nil {
		a.log.Warn("Initial equity snapshot failed", zap.Error(err))
	}
	scheduler.Start()

	var api *trader.APIServer
	if a.cfg.Trading.ApiPort > 0 {
		api = trader.NewAPIServer(engine, a.cfg.Trading.ApiPort, a.log)
		api.Start()
	}

	a.log.Info("Trading engine started",
		zap.String("strategy", engine.StrategyName()),
		zap.Strings("symbols", a.cfg.Trading.Symbols),
	)

	var runErr error
	if iterations > 0 {
		runErr = engine.RunIterations(ctx, iterations)
	} else {
		runErr = engine.Run(ctx)
	}
	if errors.Is(runErr, trader.ErrHalted) {
		a.log.Error("Trading engine halted", zap.Error(runErr))
	}

	// ctx may already be cancelled; shut down on a fresh one.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if api != nil {
		if err := api.Stop(shutdownCtx); err != nil {
			a.log.Error("API server shutdown failed", zap.Error(err))
		}
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		a.log.Error("Equity scheduler shutdown failed", zap.Error(err))
	}

	fmt.Println()
	if err := a.printReport(shutdownCtx, os.Stdout); err != nil {
		a.log.Error("Failed to build final report", zap.Error(err))
	}
	a.log.Info("Bot has been shut down.")
	return runErr
}
