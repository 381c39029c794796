package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"paper-trade-bot-go/internal/database"
	"paper-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Source is the read side of the store used for analytics.
type Source interface {
	Account(ctx context.Context) (models.Account, error)
	Trades(ctx context.Context, f database.TradeFilter) ([]models.Trade, error)
	EquityHistory(ctx context.Context) ([]models.EquitySnapshot, error)
}

// TradeStats summarizes closed trades. Profit figures only count sells, since
// only sells realize P&L.
type TradeStats struct {
	TotalTrades          int             `json:"total_trades"`
	Buys                 int             `json:"buys"`
	Sells                int             `json:"sells"`
	Wins                 int             `json:"wins"`
	Losses               int             `json:"losses"`
	GrossProfit          decimal.Decimal `json:"gross_profit"`
	GrossLoss            decimal.Decimal `json:"gross_loss"`
	NetProfit            decimal.Decimal `json:"net_profit"`
	AvgProfit            decimal.Decimal `json:"avg_profit"`
	AvgLoss              decimal.Decimal `json:"avg_loss"`
	LargestWin           decimal.Decimal `json:"largest_win"`
	LargestLoss          decimal.Decimal `json:"largest_loss"`
	TotalFees            decimal.Decimal `json:"total_fees"`
	ProfitFactor         float64         `json:"profit_factor"`
	ProfitFactorInfinite bool            `json:"profit_factor_infinite"`
}

// WinRate returns the percentage of winning sells.
func (s TradeStats) WinRate() float64 {
	if s.Sells == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Sells) * 100
}

// Report is the full performance summary.
type Report struct {
	GeneratedAt     time.Time       `json:"generated_at"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	CashBalance     decimal.Decimal `json:"cash_balance"`
	CurrentEquity   decimal.Decimal `json:"current_equity"`
	TotalReturn     decimal.Decimal `json:"total_return"`
	TotalReturnPct  float64         `json:"total_return_pct"`
	WinRate         float64         `json:"win_rate"`
	MaxDrawdownPct  float64         `json:"max_drawdown_pct"`
	MaxDrawdown     decimal.Decimal `json:"max_drawdown"`
	SharpeRatio     float64         `json:"sharpe_ratio"`
	SharpeValid     bool            `json:"sharpe_valid"`
	Stats           TradeStats      `json:"stats"`
}

// Analyzer computes performance metrics from persisted trades and equity.
type Analyzer struct {
	src Source
	now func() time.Time
}

// NewAnalyzer creates an analyzer over src.
func NewAnalyzer(src Source) *Analyzer {
	return &Analyzer{src: src, now: time.Now}
}

// Report builds the performance report. currentEquity is the live valuation of
// the account, supplied by the caller.
func (a *Analyzer) Report(ctx context.Context, currentEquity decimal.Decimal) (Report, error) {
	acc, err := a.src.Account(ctx)
	if err != nil {
		return Report{}, err
	}
	trades, err := a.src.Trades(ctx, database.TradeFilter{})
	if err != nil {
		return Report{}, err
	}
	history, err := a.src.EquityHistory(ctx)
	if err != nil {
		return Report{}, err
	}

	equities := make([]decimal.Decimal, len(history))
	for i, h := range history {
		equities[i] = h.TotalEquity
	}

	stats := ComputeTradeStats(trades)
	ddPct, ddAbs := MaxDrawdown(equities)
	absRet, pctRet := TotalReturn(acc.StartingBalance, currentEquity)
	sharpe, ok := SharpeRatio(equities)

	return Report{
		GeneratedAt:     a.now(),
		StartingBalance: acc.StartingBalance,
		CashBalance:     acc.CashBalance,
		CurrentEquity:   currentEquity,
		TotalReturn:     absRet,
		TotalReturnPct:  pctRet,
		WinRate:         stats.WinRate(),
		MaxDrawdownPct:  ddPct,
		MaxDrawdown:     ddAbs,
		SharpeRatio:     sharpe,
		SharpeValid:     ok,
		Stats:           stats,
	}, nil
}

// TotalReturn returns the absolute and percentage change from starting to current.
func TotalReturn(starting, current decimal.Decimal) (decimal.Decimal, float64) {
	abs := current.Sub(starting)
	if !starting.IsPositive() {
		return abs, 0
	}
	return abs, abs.Div(starting).InexactFloat64() * 100
}

// MaxDrawdown returns the largest peak-to-trough decline as a percentage of the
// peak, together with its absolute size.
func MaxDrawdown(equities []decimal.Decimal) (float64, decimal.Decimal) {
	if len(equities) == 0 {
		return 0, decimal.Zero
	}

	peak := equities[0]
	maxPct := 0.0
	maxAbs := decimal.Zero
	for _, e := range equities {
		if e.GreaterThan(peak) {
			peak = e
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(e)
		pct := dd.Div(peak).InexactFloat64() * 100
		if pct > maxPct {
			maxPct = pct
			maxAbs = dd
		}
	}
	return maxPct, maxAbs
}

// SharpeRatio returns mean/stddev of per-snapshot equity returns. It is not
// annualized. ok is false with fewer than two returns or zero volatility.
func SharpeRatio(equities []decimal.Decimal) (float64, bool) {
	if len(equities) < 3 {
		return 0, false
	}

	returns := make([]float64, 0, len(equities)-1)
	for i := 1; i < len(equities); i++ {
		prev := equities[i-1]
		if !prev.IsPositive() {
			continue
		}
		returns = append(returns, equities[i].Sub(prev).Div(prev).InexactFloat64())
	}
	if len(returns) < 2 {
		return 0, false
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0, false
	}
	return mean / std, true
}

// ComputeTradeStats aggregates trades.
func ComputeTradeStats(trades []models.Trade) TradeStats {
	s := TradeStats{TotalTrades: len(trades)}
	var profits, losses []decimal.Decimal

	for _, t := range trades {
		s.TotalFees = s.TotalFees.Add(t.Fee)
		if t.Side != "sell" {
			s.Buys++
			continue
		}
		s.Sells++
		if !t.RealizedPnl.Valid {
			continue
		}
		pnl := t.RealizedPnl.Decimal
		switch {
		case pnl.IsPositive():
			profits = append(profits, pnl)
		case pnl.IsNegative():
			losses = append(losses, pnl)
		}
	}

	s.Wins = len(profits)
	s.Losses = len(losses)
	if len(profits) > 0 {
		s.GrossProfit = decimal.Sum(profits[0], profits[1:]...)
		s.AvgProfit = s.GrossProfit.Div(decimal.NewFromInt(int64(len(profits))))
		s.LargestWin = decimal.Max(profits[0], profits[1:]...)
	}
	if len(losses) > 0 {
		total := decimal.Sum(losses[0], losses[1:]...)
		s.GrossLoss = total.Abs()
		s.AvgLoss = s.GrossLoss.Div(decimal.NewFromInt(int64(len(losses))))
		s.LargestLoss = decimal.Min(losses[0], losses[1:]...)
	}
	s.NetProfit = s.GrossProfit.Sub(s.GrossLoss)

	if s.GrossLoss.IsPositive() {
		s.ProfitFactor = s.GrossProfit.Div(s.GrossLoss).InexactFloat64()
	} else if s.GrossProfit.IsPositive() {
		s.ProfitFactorInfinite = true
	}
	return s
}

// FormatProfitFactor renders the profit factor, using "inf" when there are no losses.
func (s TradeStats) FormatProfitFactor() string {
	if s.ProfitFactorInfinite {
		return "inf"
	}
	return fmt.Sprintf("%.2f", s.ProfitFactor)
}
