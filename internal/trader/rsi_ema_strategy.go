package trader

import (
	"fmt"
	"math"

	"paper-trade-bot-go/internal/indicators"
	"paper-trade-bot-go/internal/ledger"
)

// RsiEmaStrategyName is the registered name of RsiEmaStrategy.
const RsiEmaStrategyName = "rsi_ema_crossover"

type crossover int

const (
	crossNone crossover = iota
	crossBullish
	crossBearish
)

// RsiEmaStrategy combines RSI extremes with the fast/slow EMA trend.
// It remembers the last crossover it saw, so one instance serves one symbol.
type RsiEmaStrategy struct {
	oversold      float64
	overbought    float64
	lastCrossover crossover
}

// NewRsiEmaStrategy creates the strategy. Zero thresholds fall back to 30/70.
func NewRsiEmaStrategy(oversold, overbought float64) *RsiEmaStrategy {
	if oversold == 0 {
		oversold = 30
	}
	if overbought == 0 {
		overbought = 70
	}
	return &RsiEmaStrategy{oversold: oversold, overbought: overbought}
}

// Name returns the unique name of the strategy.
func (s *RsiEmaStrategy) Name() string {
	return RsiEmaStrategyName
}

// Description explains the entry and exit rules.
func (s *RsiEmaStrategy) Description() string {
	return fmt.Sprintf("RSI + EMA crossover. BUY: RSI < %.0f and EMA bullish. SELL: RSI > %.0f and EMA bearish.",
		s.oversold, s.overbought)
}

// Reset forgets the last crossover.
func (s *RsiEmaStrategy) Reset() {
	s.lastCrossover = crossNone
}

// Analyze implements Strategy.
func (s *RsiEmaStrategy) Analyze(snap indicators.Snapshot, position *ledger.Position) Decision {
	held := position != nil && position.Amount.IsPositive()

	above := snap.FastAboveSlow()
	prevAbove := snap.PrevFastAboveSlow()
	bullishCross := !prevAbove && above
	bearishCross := prevAbove && !above

	switch {
	case bullishCross:
		s.lastCrossover = crossBullish
	case bearishCross:
		s.lastCrossover = crossBearish
	}

	rsi := snap.RSI

	emaBullish := above || s.lastCrossover == crossBullish
	if rsi < s.oversold && emaBullish && !held {
		return Decision{
			Signal:     SignalBuy,
			Confidence: math.Min(100, (s.oversold-rsi)*3+50),
			Reason:     fmt.Sprintf("RSI oversold (%.1f) + EMA bullish", rsi),
			Indicators: snap,
		}
	}

	emaBearish := !above || s.lastCrossover == crossBearish
	if rsi > s.overbought && emaBearish && held {
		return Decision{
			Signal:     SignalSell,
			Confidence: math.Min(100, (rsi-s.overbought)*3+50),
			Reason:     fmt.Sprintf("RSI overbought (%.1f) + EMA bearish", rsi),
			Indicators: snap,
		}
	}

	if held && bearishCross && rsi > 50 {
		return Decision{
			Signal:     SignalSell,
			Confidence: 60,
			Reason:     fmt.Sprintf("EMA bearish crossover with neutral RSI (%.1f)", rsi),
			Indicators: snap,
		}
	}

	trend := "bearish"
	if above {
		trend = "bullish"
	}
	state := "No position"
	if held {
		state = "Holding position"
	}
	return Decision{
		Signal:     SignalHold,
		Confidence: 50,
		Reason:     fmt.Sprintf("%s. Trend: %s, RSI: %.1f", state, trend, rsi),
		Indicators: snap,
	}
}
