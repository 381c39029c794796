package cmd

import (
	"context"
	"fmt"
	"io"

	"paper-trade-bot-go/internal/binance"
	"paper-trade-bot-go/internal/config"
	"paper-trade-bot-go/internal/database"
	"paper-trade-bot-go/internal/equity"
	"paper-trade-bot-go/internal/execution"
	"paper-trade-bot-go/internal/ledger"
	"paper-trade-bot-go/internal/logger"
	"paper-trade-bot-go/internal/market"
	"paper-trade-bot-go/internal/report"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	db       *gorm.DB
	store    *database.Store
	ledger   *ledger.State
	tracker  *market.Tracker
	executor *execution.Executor
	recorder *equity.Recorder
}

// newApp loads config, opens the database and restores the ledger from it.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := database.NewStore(db)

	if _, err := store.EnsureAccount(ctx, decimal.NewFromFloat(cfg.Trading.StartingBalance)); err != nil {
		return nil, err
	}
	snap, err := store.LoadLedger(ctx)
	if err != nil {
		return nil, err
	}
	l, err := ledger.Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("persisted ledger is inconsistent: %w", err)
	}
	log.Info("Ledger restored",
		zap.String("cash", l.CashBalance().StringFixed(2)),
		zap.Int("positions", len(snap.Positions)),
	)

	client := binance.NewRestClient(cfg.Market, log)
	tracker := market.NewTracker(client, store, cfg.Trading.Symbols, cfg.Market.Interval, cfg.Market.Candles, log)
	executor := execution.NewExecutor(l, tracker, store, decimal.NewFromFloat(cfg.Trading.FeeRate), log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    store,
		ledger:   l,
		tracker:  tracker,
		executor: executor,
		recorder: equity.NewRecorder(l, tracker, store, log),
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}

// printReport writes the performance summary valued at current prices.
func (a *app) printReport(ctx context.Context, w io.Writer) error {
	current := a.recorder.Value(ctx)
	r, err := report.NewAnalyzer(a.store).Report(ctx, current.TotalEquity)
	if err != nil {
		return err
	}
	report.RenderReport(w, r)
	return nil
}
