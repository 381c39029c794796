package execution

import (
	"context"
	"time"

	"paper-trade-bot-go/internal/ledger"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PriceSource provides the quote an order executes at.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Persister durably records an executed order. CommitTrade must write the trade,
// the position and the account in a single transaction and return the trade id.
type Persister interface {
	CommitTrade(ctx context.Context, c Commit) (uint, error)
}

// TradeRecord is the append-only log entry of one execution.
// RealizedPnl is only valid for sells.
type TradeRecord struct {
	Symbol      string
	Side        Side
	Amount      decimal.Decimal
	Price       decimal.Decimal
	Fee         decimal.Decimal
	GrossValue  decimal.Decimal
	NetValue    decimal.Decimal
	RealizedPnl decimal.NullDecimal
	Timestamp   time.Time
}

// Commit is everything one order changes. A zero Position.Amount means the
// position was closed.
type Commit struct {
	Trade           TradeRecord
	Position        ledger.Position
	CashBalance     decimal.Decimal
	StartingBalance decimal.Decimal
}

// TradeResult is the success outcome of an order.
//
// For buys GrossValue is the notional spent and NetValue the notional plus fee
// (total cash out). For sells GrossValue is the proceeds and NetValue the
// proceeds minus fee (cash in).
type TradeResult struct {
	TradeID     uint                `json:"trade_id"`
	Symbol      string              `json:"symbol"`
	Side        Side                `json:"side"`
	Amount      decimal.Decimal     `json:"amount"`
	Price       decimal.Decimal     `json:"price"`
	Fee         decimal.Decimal     `json:"fee"`
	GrossValue  decimal.Decimal     `json:"gross_value"`
	NetValue    decimal.Decimal     `json:"net_value"`
	RealizedPnl decimal.NullDecimal `json:"realized_pnl"`
	Timestamp   time.Time           `json:"timestamp"`
}

func newResult(id uint, rec TradeRecord) *TradeResult {
	return &TradeResult{
		TradeID:     id,
		Symbol:      rec.Symbol,
		Side:        rec.Side,
		Amount:      rec.Amount,
		Price:       rec.Price,
		Fee:         rec.Fee,
		GrossValue:  rec.GrossValue,
		NetValue:    rec.NetValue,
		RealizedPnl: rec.RealizedPnl,
		Timestamp:   rec.Timestamp,
	}
}
