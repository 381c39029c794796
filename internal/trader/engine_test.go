package trader

import (
	"context"
	"errors"
	"testing"

	"paper-trade-bot-go/internal/config"
	"paper-trade-bot-go/internal/execution"
	"paper-trade-bot-go/internal/indicators"
	"paper-trade-bot-go/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockMarketData is a mock implementation of MarketData.
type MockMarketData struct {
	mock.Mock
}

func (m *MockMarketData) FetchAndCache(ctx context.Context, symbol string) (int, error) {
	args := m.Called(ctx, symbol)
	return args.Int(0), args.Error(1)
}

func (m *MockMarketData) Closes(ctx context.Context, symbol string, limit int) ([]float64, error) {
	args := m.Called(ctx, symbol, limit)
	return args.Get(0).([]float64), args.Error(1)
}

func (m *MockMarketData) PriceLookup(ctx context.Context, symbols []string) ledger.PriceLookup {
	m.Called(ctx, symbols)
	return nil
}

// MockExecutor is a mock implementation of OrderExecutor backed by a real ledger.
type MockExecutor struct {
	mock.Mock
	ledger *ledger.State
}

func (m *MockExecutor) MarketBuy(ctx context.Context, symbol string, notional decimal.Decimal) (*execution.TradeResult, error) {
	args := m.Called(ctx, symbol, notional)
	res, _ := args.Get(0).(*execution.TradeResult)
	return res, args.Error(1)
}

func (m *MockExecutor) SellAll(ctx context.Context, symbol string) (*execution.TradeResult, error) {
	args := m.Called(ctx, symbol)
	res, _ := args.Get(0).(*execution.TradeResult)
	return res, args.Error(1)
}

func (m *MockExecutor) Ledger() *ledger.State {
	return m.ledger
}

// fixedStrategy always returns the same signal.
type fixedStrategy struct {
	signal Signal
	calls  int
}

func (s *fixedStrategy) Name() string        { return "fixed" }
func (s *fixedStrategy) Description() string { return "always " + string(s.signal) }
func (s *fixedStrategy) Reset()              {}
func (s *fixedStrategy) Analyze(snap indicators.Snapshot, _ *ledger.Position) Decision {
	s.calls++
	return Decision{Signal: s.signal, Reason: "test", Indicators: snap}
}

func testConfig() config.Config {
	return config.Config{
		Market: config.Market{Candles: 100},
		Trading: config.Trading{
			Symbols:                []string{"BTC/USDT"},
			TradeAmount:            500,
			TickInterval:           1,
			MaxPersistenceFailures: 3,
			Strategy:               RsiEmaStrategyName,
		},
		Strategy: config.Strategy{
			RSIPeriod: 14, EMAFast: 12, EMASlow: 26,
			MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
			BBPeriod: 20, BBStdDev: 2, RSIOversold: 30, RSIOverbought: 70,
		},
	}
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

// setupEngine creates an engine whose strategy always answers signal.
func setupEngine(t *testing.T, signal Signal) (*Engine, *MockMarketData, *MockExecutor, *fixedStrategy) {
	t.Helper()
	market := new(MockMarketData)
	exec := &MockExecutor{ledger: ledger.New(decimal.NewFromInt(10000))}

	engine, err := NewEngine(zap.NewNop(), testConfig(), market, exec)
	require.NoError(t, err)

	strategy := &fixedStrategy{signal: signal}
	engine.strategies["BTC/USDT"] = strategy

	market.On("FetchAndCache", mock.Anything, "BTC/USDT").Return(100, nil)
	market.On("Closes", mock.Anything, "BTC/USDT", 100).Return(rising(100), nil)
	market.On("PriceLookup", mock.Anything, mock.Anything).Return()
	return engine, market, exec, strategy
}

func buyResult() *execution.TradeResult {
	return &execution.TradeResult{TradeID: 1, Symbol: "BTC/USDT", Side: execution.SideBuy,
		Amount: decimal.RequireFromString("0.01"), Price: decimal.NewFromInt(50000)}
}

func TestEngine_BuysWhenFlat(t *testing.T) {
	// Arrange
	ctx := context.Background()
	engine, _, exec, _ := setupEngine(t, SignalBuy)
	exec.On("MarketBuy", ctx, "BTC/USDT", mock.MatchedBy(func(n decimal.Decimal) bool {
		return n.Equal(decimal.NewFromInt(500))
	})).Return(buyResult(), nil).Once()

	// Act
	err := engine.Iterate(ctx)

	// Assert
	require.NoError(t, err)
	exec.AssertExpectations(t)
	assert.Equal(t, int64(1), engine.Status().TradesPlaced)
}

func TestEngine_DoesNotBuyWhenHolding(t *testing.T) {
	ctx := context.Background()
	engine, _, exec, strategy := setupEngine(t, SignalBuy)
	require.NoError(t, exec.ledger.ApplyBuy("BTC/USDT", decimal.RequireFromString("0.01"), decimal.NewFromInt(50000), decimal.Zero))

	require.NoError(t, engine.Iterate(ctx))

	assert.Equal(t, 1, strategy.calls)
	exec.AssertNotCalled(t, "MarketBuy", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_SellsAllWhenHolding(t *testing.T) {
	ctx := context.Background()
	engine, _, exec, _ := setupEngine(t, SignalSell)
	require.NoError(t, exec.ledger.ApplyBuy("BTC/USDT", decimal.RequireFromString("0.01"), decimal.NewFromInt(50000), decimal.Zero))
	exec.On("SellAll", ctx, "BTC/USDT").Return(&execution.TradeResult{TradeID: 2, Side: execution.SideSell}, nil).Once()

	require.NoError(t, engine.Iterate(ctx))

	exec.AssertExpectations(t)
}

func TestEngine_SkipsWithInsufficientData(t *testing.T) {
	ctx := context.Background()
	market := new(MockMarketData)
	exec := &MockExecutor{ledger: ledger.New(decimal.NewFromInt(10000))}
	engine, err := NewEngine(zap.NewNop(), testConfig(), market, exec)
	require.NoError(t, err)
	strategy := &fixedStrategy{signal: SignalBuy}
	engine.strategies["BTC/USDT"] = strategy

	market.On("FetchAndCache", ctx, "BTC/USDT").Return(0, errors.New("exchange unreachable"))
	market.On("Closes", ctx, "BTC/USDT", 100).Return(rising(10), nil)

	require.NoError(t, engine.Iterate(ctx))

	assert.Zero(t, strategy.calls)
	exec.AssertNotCalled(t, "MarketBuy", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_RejectedOrderDoesNotHalt(t *testing.T) {
	ctx := context.Background()
	engine, _, exec, _ := setupEngine(t, SignalBuy)
	exec.On("MarketBuy", ctx, "BTC/USDT", mock.Anything).Return(nil,
		&execution.OrderError{Kind: execution.KindPriceUnavailable, Symbol: "BTC/USDT", Side: execution.SideBuy, Message: "no quote"})

	for i := 0; i < 5; i++ {
		require.NoError(t, engine.Iterate(ctx))
	}
	assert.False(t, engine.Status().Halted)
	assert.Equal(t, int64(5), engine.Status().Iterations)
}

func TestEngine_HaltsAfterRepeatedPersistenceFailures(t *testing.T) {
	// Arrange
	ctx := context.Background()
	engine, _, exec, _ := setupEngine(t, SignalBuy)
	persistErr := &execution.OrderError{Kind: execution.KindPersistenceFailure, Symbol: "BTC/USDT",
		Side: execution.SideBuy, Message: "trade not persisted", Err: errors.New("disk full")}
	exec.On("MarketBuy", ctx, "BTC/USDT", mock.Anything).Return(buyResult(), persistErr)

	// Act & Assert
	require.NoError(t, engine.Iterate(ctx))
	require.NoError(t, engine.Iterate(ctx))
	err := engine.Iterate(ctx)
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, execution.ErrPersistenceFailure)
	assert.True(t, engine.Status().Halted)

	// halted engines refuse further work
	assert.ErrorIs(t, engine.Iterate(ctx), ErrHalted)
	exec.AssertNumberOfCalls(t, "MarketBuy", 3)
}

func TestEngine_SuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	engine, _, exec, _ := setupEngine(t, SignalBuy)
	persistErr := &execution.OrderError{Kind: execution.KindPersistenceFailure, Message: "trade not persisted"}
	exec.On("MarketBuy", ctx, "BTC/USDT", mock.Anything).Return(buyResult(), persistErr).Twice()
	exec.On("MarketBuy", ctx, "BTC/USDT", mock.Anything).Return(buyResult(), nil).Once()
	exec.On("MarketBuy", ctx, "BTC/USDT", mock.Anything).Return(buyResult(), persistErr).Twice()

	for i := 0; i < 5; i++ {
		require.NoError(t, engine.Iterate(ctx))
	}
	assert.False(t, engine.Status().Halted)
}

func TestEngine_RunIterationsLogsSummary(t *testing.T) {
	ctx := context.Background()
	engine, market, _, _ := setupEngine(t, SignalHold)
	cfg := testConfig()
	cfg.Trading.TickInterval = 0
	engine.cfg = cfg

	require.NoError(t, engine.RunIterations(ctx, 10))

	assert.Equal(t, int64(10), engine.Status().Iterations)
	market.AssertNumberOfCalls(t, "PriceLookup", 1)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	engine, _, _, strategy := setupEngine(t, SignalHold)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Run(ctx)

	assert.NoError(t, err)
	assert.Zero(t, strategy.calls)
}

func TestNewEngine_UnknownStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.Strategy = "coin_flip"

	_, err := NewEngine(zap.NewNop(), cfg, new(MockMarketData), &MockExecutor{})
	assert.Error(t, err)
}

func TestEngine_Status(t *testing.T) {
	engine, _, _, _ := setupEngine(t, SignalHold)

	st := engine.Status()

	assert.NotEmpty(t, st.UUID)
	assert.Equal(t, "fixed", st.Strategy)
	assert.Equal(t, "10000.00", st.CashBalance)
	assert.Equal(t, []string{"BTC/USDT"}, st.Symbols)
}
