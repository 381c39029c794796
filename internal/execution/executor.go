package execution

import (
	"context"
	"errors"
	"sync"
	"time"

	"paper-trade-bot-go/internal/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Executor is the only writer of the ledger. It turns an order plus a quote into
// a ledger mutation and a persisted trade.
type Executor struct {
	mu      sync.Mutex
	ledger  *ledger.State
	prices  PriceSource
	store   Persister
	feeRate decimal.Decimal
	logger  *zap.Logger
	now     func() time.Time
}

// NewExecutor creates an executor over an existing ledger.
func NewExecutor(l *ledger.State, prices PriceSource, store Persister, feeRate decimal.Decimal, logger *zap.Logger) *Executor {
	return &Executor{
		ledger:  l,
		prices:  prices,
		store:   store,
		feeRate: feeRate,
		logger:  logger.Named("executor"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ledger returns the state the executor writes to.
func (e *Executor) Ledger() *ledger.State {
	return e.ledger
}

// FeeRate returns the fee fraction charged per trade.
func (e *Executor) FeeRate() decimal.Decimal {
	return e.feeRate
}

// MarketBuy spends notional of cash on symbol at the current price. The fee is
// charged on top of the notional.
func (e *Executor) MarketBuy(ctx context.Context, symbol string, notional decimal.Decimal) (*TradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !notional.IsPositive() {
		return nil, &OrderError{Kind: KindInvalidAmount, Symbol: symbol, Side: SideBuy,
			Message: "notional must be positive, got " + notional.String()}
	}

	price, err := e.quote(ctx, symbol, SideBuy)
	if err != nil {
		return nil, err
	}

	fee := notional.Mul(e.feeRate)
	total := notional.Add(fee)
	if !e.ledger.CanAfford(total) {
		return nil, &OrderError{Kind: KindInsufficientFunds, Symbol: symbol, Side: SideBuy,
			Message: "need " + total.String() + ", have " + e.ledger.CashBalance().String()}
	}

	amount, err := e.ledger.ApplyBuyNotional(symbol, notional, price, fee)
	if err != nil {
		return nil, &OrderError{Kind: kindFromLedger(err), Symbol: symbol, Side: SideBuy, Message: "ledger rejected buy", Err: err}
	}

	rec := TradeRecord{
		Symbol:     symbol,
		Side:       SideBuy,
		Amount:     amount,
		Price:      price,
		Fee:        fee,
		GrossValue: notional,
		NetValue:   total,
		Timestamp:  e.now(),
	}
	return e.commit(ctx, rec)
}

// MarketSell sells amount of symbol at the current price. The fee is deducted
// from the proceeds. Partial sells keep the remaining cost basis.
func (e *Executor) MarketSell(ctx context.Context, symbol string, amount decimal.Decimal) (*TradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sell(ctx, symbol, amount)
}

// SellAll sells the full held amount of symbol.
func (e *Executor) SellAll(ctx context.Context, symbol string) (*TradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.ledger.Position(symbol)
	if !ok {
		return nil, &OrderError{Kind: KindInsufficientPosition, Symbol: symbol, Side: SideSell, Message: "no position to sell"}
	}
	return e.sell(ctx, symbol, pos.Amount)
}

// PositionValue marks the position in symbol to the current quote and returns
// its value and unrealized P&L. Without a quote the entry price is used and the
// quote error is logged. Both are zero when flat.
func (e *Executor) PositionValue(ctx context.Context, symbol string) (value, unrealizedPnl decimal.Decimal, err error) {
	pos, ok := e.ledger.Position(symbol)
	if !ok {
		return decimal.Zero, decimal.Zero, nil
	}
	price, err := e.quote(ctx, symbol, "")
	if err != nil {
		e.logger.Warn("Valuing position at entry price", zap.String("symbol", symbol), zap.Error(err))
		price = pos.AvgEntryPrice
	}
	return pos.Amount.Mul(price), e.ledger.CalculateUnrealizedPnl(symbol, price), nil
}

func (e *Executor) sell(ctx context.Context, symbol string, amount decimal.Decimal) (*TradeResult, error) {
	if !amount.IsPositive() {
		return nil, &OrderError{Kind: KindInvalidAmount, Symbol: symbol, Side: SideSell,
			Message: "amount must be positive, got " + amount.String()}
	}

	pos, ok := e.ledger.Position(symbol)
	if !ok || pos.Amount.LessThan(amount) {
		held := decimal.Zero
		if ok {
			held = pos.Amount
		}
		return nil, &OrderError{Kind: KindInsufficientPosition, Symbol: symbol, Side: SideSell,
			Message: "hold " + held.String() + ", want to sell " + amount.String()}
	}

	price, err := e.quote(ctx, symbol, SideSell)
	if err != nil {
		return nil, err
	}

	gross := amount.Mul(price)
	fee := gross.Mul(e.feeRate)
	pnl, err := e.ledger.ApplySell(symbol, amount, price, fee)
	if err != nil {
		return nil, &OrderError{Kind: kindFromLedger(err), Symbol: symbol, Side: SideSell, Message: "ledger rejected sell", Err: err}
	}

	rec := TradeRecord{
		Symbol:      symbol,
		Side:        SideSell,
		Amount:      amount,
		Price:       price,
		Fee:         fee,
		GrossValue:  gross,
		NetValue:    gross.Sub(fee),
		RealizedPnl: decimal.NewNullDecimal(pnl),
		Timestamp:   e.now(),
	}
	return e.commit(ctx, rec)
}

// quote fetches the price once per order. Errors and non-positive prices are
// both reported as PriceUnavailable.
func (e *Executor) quote(ctx context.Context, symbol string, side Side) (decimal.Decimal, error) {
	price, err := e.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, &OrderError{Kind: KindPriceUnavailable, Symbol: symbol, Side: side, Message: "no quote", Err: err}
	}
	if !price.IsPositive() {
		return decimal.Zero, &OrderError{Kind: KindPriceUnavailable, Symbol: symbol, Side: side,
			Message: "non-positive quote " + price.String()}
	}
	return price, nil
}

// commit persists the trade together with the post-trade position and account.
// The ledger has already been mutated, so a failed write returns the result as
// well as a PersistenceFailure.
func (e *Executor) commit(ctx context.Context, rec TradeRecord) (*TradeResult, error) {
	snap := e.ledger.Snapshot()
	pos, ok := e.ledger.Position(rec.Symbol)
	if !ok {
		pos = ledger.Position{Symbol: rec.Symbol, Amount: decimal.Zero, AvgEntryPrice: decimal.Zero}
	}

	c := Commit{
		Trade:           rec,
		Position:        pos,
		CashBalance:     snap.CashBalance,
		StartingBalance: snap.StartingBalance,
	}

	l := e.logger.With(
		zap.String("symbol", rec.Symbol),
		zap.String("side", string(rec.Side)),
		zap.String("amount", rec.Amount.String()),
		zap.String("price", rec.Price.String()),
		zap.String("fee", rec.Fee.String()),
	)

	id, err := e.store.CommitTrade(ctx, c)
	if err != nil {
		l.Error("Trade applied in memory but not persisted; ledger diverges from storage until restart",
			zap.String("cash_balance", snap.CashBalance.String()),
			zap.Error(err),
		)
		return newResult(0, rec), &OrderError{Kind: KindPersistenceFailure, Symbol: rec.Symbol, Side: rec.Side,
			Message: "trade not persisted", Err: err}
	}

	l.Info("Trade executed", zap.Uint("trade_id", id), zap.String("cash_balance", snap.CashBalance.String()))
	return newResult(id, rec), nil
}

// IsPersistenceFailure reports whether err is a persistence failure.
func IsPersistenceFailure(err error) bool {
	return errors.Is(err, ErrPersistenceFailure)
}
