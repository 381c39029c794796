package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paper-trade-bot-go/internal/config"
	"paper-trade-bot-go/internal/execution"
	"paper-trade-bot-go/internal/indicators"
	"paper-trade-bot-go/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrHalted is returned when the engine stops after repeated persistence failures.
var ErrHalted = errors.New("engine halted")

const summaryEvery = 10

// MarketData is what the engine needs from the market tracker.
type MarketData interface {
	FetchAndCache(ctx context.Context, symbol string) (int, error)
	Closes(ctx context.Context, symbol string, limit int) ([]float64, error)
	PriceLookup(ctx context.Context, symbols []string) ledger.PriceLookup
}

// OrderExecutor places paper orders against the ledger.
type OrderExecutor interface {
	MarketBuy(ctx context.Context, symbol string, notional decimal.Decimal) (*execution.TradeResult, error)
	SellAll(ctx context.Context, symbol string) (*execution.TradeResult, error)
	Ledger() *ledger.State
}

// Status is a point-in-time view of the engine.
type Status struct {
	UUID          string    `json:"uuid"`
	Strategy      string    `json:"strategy"`
	Symbols       []string  `json:"symbols"`
	StartTime     time.Time `json:"start_time"`
	Uptime        string    `json:"uptime"`
	Iterations    int64     `json:"iterations"`
	TradesPlaced  int64     `json:"trades_placed"`
	CashBalance   string    `json:"cash_balance"`
	OpenPositions int       `json:"open_positions"`
	Halted        bool      `json:"halted"`
}

// Engine is the polling loop: refresh candles, compute indicators, ask the
// strategy, place orders.
type Engine struct {
	logger      *zap.Logger
	cfg         config.Config
	market      MarketData
	executor    OrderExecutor
	params      indicators.Params
	tradeAmount decimal.Decimal
	strategies  map[string]Strategy

	UUID      string
	StartTime time.Time

	mu                  sync.Mutex
	iterations          int64
	tradesPlaced        int64
	persistenceFailures int
	halted              bool
}

// NewEngine creates a new trading engine with one strategy instance per symbol.
func NewEngine(logger *zap.Logger, cfg config.Config, market MarketData, executor OrderExecutor) (*Engine, error) {
	strategies := make(map[string]Strategy, len(cfg.Trading.Symbols))
	for _, symbol := range cfg.Trading.Symbols {
		s, err := NewStrategy(cfg.Trading.Strategy, cfg.Strategy)
		if err != nil {
			return nil, err
		}
		strategies[symbol] = s
	}

	return &Engine{
		logger:      logger.Named("engine"),
		cfg:         cfg,
		market:      market,
		executor:    executor,
		params:      indicators.ParamsFromConfig(cfg.Strategy),
		tradeAmount: decimal.NewFromFloat(cfg.Trading.TradeAmount),
		strategies:  strategies,
		UUID:        uuid.NewString(),
		StartTime:   time.Now(),
	}, nil
}

// StrategyName returns the name of the strategy in use.
func (e *Engine) StrategyName() string {
	for _, s := range e.strategies {
		return s.Name()
	}
	return ""
}

// Run starts the trading engine's main loop. It returns nil when ctx is
// cancelled and ErrHalted when persistence keeps failing.
func (e *Engine) Run(ctx context.Context) error {
	interval := time.Duration(e.cfg.Trading.TickInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting trading loop",
		zap.String("uuid", e.UUID),
		zap.Duration("interval", interval),
		zap.Strings("symbols", e.cfg.Trading.Symbols),
	)

	for {
		if err := e.Iterate(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return nil
		case <-ticker.C:
		}
	}
}

// RunIterations runs n iterations back to back, waiting the tick interval
// between them.
func (e *Engine) RunIterations(ctx context.Context, n int) error {
	interval := time.Duration(e.cfg.Trading.TickInterval) * time.Second
	e.logger.Info("Starting demo run", zap.Int("iterations", n))

	for i := 0; i < n; i++ {
		if err := e.Iterate(ctx); err != nil {
			return err
		}
		if i == n-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
	return nil
}

// Iterate processes every symbol once.
func (e *Engine) Iterate(ctx context.Context) error {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return ErrHalted
	}
	e.iterations++
	iteration := e.iterations
	e.mu.Unlock()

	for _, symbol := range e.cfg.Trading.Symbols {
		if ctx.Err() != nil {
			return nil
		}
		if err := e.processSymbol(ctx, symbol); err != nil {
			return err
		}
	}

	if iteration%summaryEvery == 0 {
		e.logSummary(ctx)
	}
	return nil
}

func (e *Engine) processSymbol(ctx context.Context, symbol string) error {
	l := e.logger.With(zap.String("symbol", symbol))

	if _, err := e.market.FetchAndCache(ctx, symbol); err != nil {
		l.Warn("Could not refresh candles, using cache", zap.Error(err))
	}

	closes, err := e.market.Closes(ctx, symbol, e.cfg.Market.Candles)
	if err != nil {
		l.Error("Failed to load closes", zap.Error(err))
		return nil
	}

	snap, err := indicators.Latest(closes, e.params)
	if err != nil {
		l.Debug("Skipping analysis", zap.Error(err))
		return nil
	}

	var position *ledger.Position
	if p, ok := e.executor.Ledger().Position(symbol); ok {
		position = &p
	}

	decision := e.strategies[symbol].Analyze(snap, position)
	l.Info("Analysis complete",
		zap.String("signal", string(decision.Signal)),
		zap.Float64("confidence", decision.Confidence),
		zap.String("reason", decision.Reason),
		zap.Float64("rsi", snap.RSI),
		zap.Float64("close", snap.Close),
	)

	var result *execution.TradeResult
	switch {
	case decision.Signal == SignalBuy && position == nil:
		result, err = e.executor.MarketBuy(ctx, symbol, e.tradeAmount)
	case decision.Signal == SignalSell && position != nil:
		result, err = e.executor.SellAll(ctx, symbol)
	default:
		return nil
	}

	return e.handleOrder(l, result, err)
}

// handleOrder counts consecutive persistence failures and halts once the
// configured limit is reached. Validation failures are logged and skipped.
func (e *Engine) handleOrder(l *zap.Logger, result *execution.TradeResult, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		e.persistenceFailures = 0
		e.tradesPlaced++
		l.Info("Order filled",
			zap.Uint("trade_id", result.TradeID),
			zap.String("side", string(result.Side)),
			zap.String("amount", result.Amount.String()),
			zap.String("price", result.Price.String()),
		)
		return nil
	}

	if !execution.IsPersistenceFailure(err) {
		l.Warn("Order rejected", zap.String("kind", string(execution.KindOf(err))), zap.Error(err))
		return nil
	}

	e.tradesPlaced++
	e.persistenceFailures++
	l.Error("Order not persisted", zap.Int("consecutive_failures", e.persistenceFailures), zap.Error(err))
	if limit := e.cfg.Trading.MaxPersistenceFailures; limit > 0 && e.persistenceFailures >= limit {
		e.halted = true
		return fmt.Errorf("%w: %d consecutive persistence failures: %w", ErrHalted, e.persistenceFailures, err)
	}
	return nil
}

func (e *Engine) logSummary(ctx context.Context) {
	st := e.executor.Ledger()
	lookup := e.market.PriceLookup(ctx, e.cfg.Trading.Symbols)
	cash, positionsValue := st.Valuation(lookup)
	total := cash.Add(positionsValue)
	starting := st.StartingBalance()

	ret := decimal.Zero
	if starting.IsPositive() {
		ret = total.Sub(starting).Div(starting).Mul(decimal.NewFromInt(100))
	}

	e.logger.Info("Portfolio summary",
		zap.Int64("iteration", e.Status().Iterations),
		zap.String("cash", cash.StringFixed(2)),
		zap.String("positions_value", positionsValue.StringFixed(2)),
		zap.String("total_equity", total.StringFixed(2)),
		zap.String("return_pct", ret.StringFixed(2)),
	)
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.executor.Ledger()
	return Status{
		UUID:          e.UUID,
		Strategy:      e.StrategyName(),
		Symbols:       e.cfg.Trading.Symbols,
		StartTime:     e.StartTime,
		Uptime:        time.Since(e.StartTime).Round(time.Second).String(),
		Iterations:    e.iterations,
		TradesPlaced:  e.tradesPlaced,
		CashBalance:   st.CashBalance().StringFixed(2),
		OpenPositions: len(st.Positions()),
		Halted:        e.halted,
	}
}
