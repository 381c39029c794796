package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"paper-trade-bot-go/internal/database"
	"paper-trade-bot-go/internal/ledger"
	"paper-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSource is a mock implementation of Source.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Account(ctx context.Context) (models.Account, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockSource) Trades(ctx context.Context, f database.TradeFilter) ([]models.Trade, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Trade), args.Error(1)
}

func (m *MockSource) EquityHistory(ctx context.Context) ([]models.EquitySnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.EquitySnapshot), args.Error(1)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decimals(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = d(v)
	}
	return out
}

func sell(pnl string, fee string) models.Trade {
	return models.Trade{Symbol: "BTC/USDT", Side: "sell", Fee: d(fee),
		RealizedPnl: decimal.NewNullDecimal(d(pnl))}
}

func buy(fee string) models.Trade {
	return models.Trade{Symbol: "BTC/USDT", Side: "buy", Fee: d(fee)}
}

func TestTotalReturn(t *testing.T) {
	testCases := []struct {
		name        string
		starting    string
		current     string
		expectedAbs string
		expectedPct float64
	}{
		{name: "Gain", starting: "10000", current: "11000", expectedAbs: "1000", expectedPct: 10},
		{name: "Loss", starting: "10000", current: "9500", expectedAbs: "-500", expectedPct: -5},
		{name: "Flat", starting: "10000", current: "10000", expectedAbs: "0", expectedPct: 0},
		{name: "Zero starting balance", starting: "0", current: "100", expectedAbs: "100", expectedPct: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			abs, pct := TotalReturn(d(tc.starting), d(tc.current))

			assert.True(t, d(tc.expectedAbs).Equal(abs), "got %s", abs)
			assert.InDelta(t, tc.expectedPct, pct, 1e-9)
		})
	}
}

func TestMaxDrawdown(t *testing.T) {
	testCases := []struct {
		name        string
		equities    []decimal.Decimal
		expectedPct float64
		expectedAbs string
	}{
		{name: "Empty", equities: nil, expectedPct: 0, expectedAbs: "0"},
		{name: "Monotonic rise", equities: decimals("100", "110", "120"), expectedPct: 0, expectedAbs: "0"},
		{name: "Single dip", equities: decimals("100", "80", "90"), expectedPct: 20, expectedAbs: "20"},
		{name: "Deeper dip after new peak", equities: decimals("100", "90", "200", "150", "210"), expectedPct: 25, expectedAbs: "50"},
		{name: "Larger absolute but smaller relative", equities: decimals("100", "50", "1000", "600"), expectedPct: 50, expectedAbs: "50"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pct, abs := MaxDrawdown(tc.equities)

			assert.InDelta(t, tc.expectedPct, pct, 1e-9)
			assert.True(t, d(tc.expectedAbs).Equal(abs), "got %s", abs)
		})
	}
}

func TestSharpeRatio(t *testing.T) {
	t.Run("Too few points", func(t *testing.T) {
		_, ok := SharpeRatio(decimals("100", "110"))
		assert.False(t, ok)
	})

	t.Run("Constant returns have no volatility", func(t *testing.T) {
		_, ok := SharpeRatio(decimals("100", "100", "100", "100"))
		assert.False(t, ok)
	})

	t.Run("Mixed returns", func(t *testing.T) {
		// returns: +10%, -10%, +10%
		sharpe, ok := SharpeRatio(decimals("100", "110", "99", "108.9"))

		require.True(t, ok)
		// mean 0.0333.., sample stddev 0.11547..
		assert.InDelta(t, 0.288675, sharpe, 1e-5)
	})

	t.Run("Positive drift is positive", func(t *testing.T) {
		sharpe, ok := SharpeRatio(decimals("100", "101", "103", "104", "107"))

		require.True(t, ok)
		assert.Greater(t, sharpe, 0.0)
	})
}

func TestComputeTradeStats(t *testing.T) {
	// Arrange
	trades := []models.Trade{
		buy("1"),
		sell("100", "1"),
		buy("1"),
		sell("-40", "1"),
		buy("1"),
		sell("50", "1"),
		sell("-10", "1"),
	}

	// Act
	s := ComputeTradeStats(trades)

	// Assert
	assert.Equal(t, 7, s.TotalTrades)
	assert.Equal(t, 3, s.Buys)
	assert.Equal(t, 4, s.Sells)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.True(t, d("150").Equal(s.GrossProfit))
	assert.True(t, d("50").Equal(s.GrossLoss))
	assert.True(t, d("100").Equal(s.NetProfit))
	assert.True(t, d("75").Equal(s.AvgProfit))
	assert.True(t, d("25").Equal(s.AvgLoss))
	assert.True(t, d("100").Equal(s.LargestWin))
	assert.True(t, d("-40").Equal(s.LargestLoss))
	assert.True(t, d("7").Equal(s.TotalFees))
	assert.InDelta(t, 3.0, s.ProfitFactor, 1e-9)
	assert.False(t, s.ProfitFactorInfinite)
	assert.InDelta(t, 50.0, s.WinRate(), 1e-9)
	assert.Equal(t, "3.00", s.FormatProfitFactor())
}

func TestComputeTradeStats_NoLosses(t *testing.T) {
	s := ComputeTradeStats([]models.Trade{buy("1"), sell("20", "1")})

	assert.True(t, s.ProfitFactorInfinite)
	assert.Equal(t, "inf", s.FormatProfitFactor())
	assert.InDelta(t, 100.0, s.WinRate(), 1e-9)
}

func TestComputeTradeStats_Empty(t *testing.T) {
	s := ComputeTradeStats(nil)

	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate())
	assert.False(t, s.ProfitFactorInfinite)
	assert.Equal(t, "0.00", s.FormatProfitFactor())
}

func TestAnalyzer_Report(t *testing.T) {
	// Arrange
	ctx := context.Background()
	src := new(MockSource)
	src.On("Account", ctx).Return(models.Account{CashBalance: d("10500"), StartingBalance: d("10000")}, nil)
	src.On("Trades", ctx, database.TradeFilter{}).Return([]models.Trade{buy("1"), sell("500", "1")}, nil)
	src.On("EquityHistory", ctx).Return([]models.EquitySnapshot{
		{TotalEquity: d("10000")},
		{TotalEquity: d("9000")},
		{TotalEquity: d("10500")},
	}, nil)

	a := NewAnalyzer(src)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	// Act
	r, err := a.Report(ctx, d("10500"))

	// Assert
	require.NoError(t, err)
	src.AssertExpectations(t)
	assert.Equal(t, fixed, r.GeneratedAt)
	assert.True(t, d("500").Equal(r.TotalReturn))
	assert.InDelta(t, 5.0, r.TotalReturnPct, 1e-9)
	assert.InDelta(t, 100.0, r.WinRate, 1e-9)
	assert.InDelta(t, 10.0, r.MaxDrawdownPct, 1e-9)
	assert.True(t, d("1000").Equal(r.MaxDrawdown))
	assert.True(t, r.SharpeValid)
	assert.Equal(t, 2, r.Stats.TotalTrades)
}

func TestAnalyzer_ReportPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	src := new(MockSource)
	src.On("Account", ctx).Return(models.Account{}, database.ErrNoAccount)

	_, err := NewAnalyzer(src).Report(ctx, decimal.Zero)

	assert.ErrorIs(t, err, database.ErrNoAccount)
	src.AssertNotCalled(t, "Trades", mock.Anything, mock.Anything)
}

func TestAnalyzer_ReportTradesError(t *testing.T) {
	ctx := context.Background()
	src := new(MockSource)
	src.On("Account", ctx).Return(models.Account{StartingBalance: d("10000")}, nil)
	src.On("Trades", ctx, mock.Anything).Return([]models.Trade(nil), errors.New("db locked"))

	_, err := NewAnalyzer(src).Report(ctx, decimal.Zero)

	assert.EqualError(t, err, "db locked")
}

func TestRenderAccount(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	acc := models.Account{CashBalance: d("9000"), StartingBalance: d("10000")}
	positions := []models.Position{
		{Symbol: "BTC/USDT", Amount: d("0.02"), AvgEntryPrice: d("50000")},
		{Symbol: "ETH/USDT", Amount: d("1"), AvgEntryPrice: d("3000")},
	}
	lookup := ledger.PriceLookup(func(symbol string) (decimal.Decimal, bool) {
		if symbol == "BTC/USDT" {
			return d("55000"), true
		}
		return decimal.Zero, false
	})

	// Act
	RenderAccount(&buf, acc, positions, lookup)

	// Assert
	out := buf.String()
	assert.Contains(t, out, "BTC/USDT")
	assert.Contains(t, out, "1100.00")  // 0.02 * 55000
	assert.Contains(t, out, "100.00")   // unrealized
	assert.Contains(t, out, "13100.00") // 9000 + 1100 + 3000
}

func TestRenderTrades(t *testing.T) {
	var buf bytes.Buffer
	trades := []models.Trade{
		{ID: 7, Symbol: "ETH/USDT", Side: "sell", Amount: d("0.5"), Price: d("3000"), Fee: d("1.5"),
			NetValue: d("1498.5"), RealizedPnl: decimal.NewNullDecimal(d("-12.25")),
			Timestamp: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
	}

	RenderTrades(&buf, trades)

	out := buf.String()
	assert.Contains(t, out, "ETH/USDT")
	assert.Contains(t, out, "2024-03-01 12:30:00")
	assert.Contains(t, out, "-12.25")
	assert.Contains(t, out, "1498.50")
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	r := Report{
		StartingBalance: d("10000"),
		CurrentEquity:   d("10500"),
		TotalReturn:     d("500"),
		TotalReturnPct:  5,
		Stats:           TradeStats{ProfitFactorInfinite: true},
	}

	RenderReport(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "500.00 (5.00%)")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "inf")
}
