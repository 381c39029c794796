package trader

import (
	"fmt"

	"paper-trade-bot-go/internal/config"
	"paper-trade-bot-go/internal/indicators"
	"paper-trade-bot-go/internal/ledger"
)

// Signal is the action a strategy recommends.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Decision is the outcome of one analysis.
type Decision struct {
	Signal     Signal              `json:"signal"`
	Confidence float64             `json:"confidence"`
	Reason     string              `json:"reason"`
	Indicators indicators.Snapshot `json:"indicators"`
}

// Strategy defines the interface for a trading strategy.
// Strategies only decide; orders are placed by the engine.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Description explains the entry and exit rules.
	Description() string

	// Analyze returns a decision for the latest indicators. position is nil when flat.
	Analyze(snap indicators.Snapshot, position *ledger.Position) Decision

	// Reset clears any state kept between calls.
	Reset()
}

// NewStrategy builds the strategy registered under name.
func NewStrategy(name string, cfg config.Strategy) (Strategy, error) {
	switch name {
	case "", RsiEmaStrategyName:
		return NewRsiEmaStrategy(cfg.RSIOversold, cfg.RSIOverbought), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
