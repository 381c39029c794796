package equity

import (
	"context"
	"fmt"
	"time"

	"paper-trade-bot-go/internal/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Snapshot is the valuation of the account at one point in time.
type Snapshot struct {
	Timestamp      time.Time       `json:"timestamp"`
	Cash           decimal.Decimal `json:"cash"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	TotalEquity    decimal.Decimal `json:"total_equity"`
}

// Sink appends equity snapshots to durable storage.
type Sink interface {
	RecordEquity(ctx context.Context, s Snapshot) error
}

// PriceFeed resolves current prices for a set of symbols.
type PriceFeed interface {
	PriceLookup(ctx context.Context, symbols []string) ledger.PriceLookup
}

// Recorder captures total equity from the ledger. It only reads ledger state.
type Recorder struct {
	ledger *ledger.State
	prices PriceFeed
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder. prices may be nil, in which case positions
// are valued at their entry price.
func NewRecorder(l *ledger.State, prices PriceFeed, sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{
		ledger: l,
		prices: prices,
		sink:   sink,
		logger: logger.Named("equity"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Value computes the current equity snapshot without recording it.
func (r *Recorder) Value(ctx context.Context) Snapshot {
	var lookup ledger.PriceLookup
	if r.prices != nil {
		positions := r.ledger.Positions()
		symbols := make([]string, 0, len(positions))
		for _, p := range positions {
			symbols = append(symbols, p.Symbol)
		}
		lookup = r.prices.PriceLookup(ctx, symbols)
	}

	cash, positionsValue := r.ledger.Valuation(lookup)
	return Snapshot{
		Timestamp:      r.now(),
		Cash:           cash,
		PositionsValue: positionsValue,
		TotalEquity:    cash.Add(positionsValue),
	}
}

// Snapshot computes the current equity and appends it to the sink.
func (r *Recorder) Snapshot(ctx context.Context) (Snapshot, error) {
	s := r.Value(ctx)
	if err := r.sink.RecordEquity(ctx, s); err != nil {
		return s, fmt.Errorf("failed to record equity: %w", err)
	}
	r.logger.Debug("Equity recorded",
		zap.String("cash", s.Cash.StringFixed(2)),
		zap.String("positions_value", s.PositionsValue.StringFixed(2)),
		zap.String("total_equity", s.TotalEquity.StringFixed(2)),
	)
	return s, nil
}
