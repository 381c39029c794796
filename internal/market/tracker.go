package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper-trade-bot-go/internal/binance"
	"paper-trade-bot-go/internal/ledger"
	"paper-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CandleStore is the candle cache the tracker reads and writes.
type CandleStore interface {
	SaveCandles(ctx context.Context, candles []models.Candle) error
	LatestClose(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error)
	Closes(ctx context.Context, symbol string, limit int) ([]decimal.Decimal, error)
}

// Tracker fetches quotes and candles for the configured symbols and caches
// candles locally.
type Tracker struct {
	client   binance.RestClientInterface
	store    CandleStore
	symbols  []string
	interval string
	limit    int
	logger   *zap.Logger
}

// NewTracker creates a tracker for symbols written as BASE/QUOTE.
func NewTracker(client binance.RestClientInterface, store CandleStore, symbols []string, interval string, limit int, logger *zap.Logger) *Tracker {
	return &Tracker{
		client:   client,
		store:    store,
		symbols:  symbols,
		interval: interval,
		limit:    limit,
		logger:   logger.Named("market"),
	}
}

// Symbols returns the tracked symbols.
func (t *Tracker) Symbols() []string {
	return t.symbols
}

// ExchangeSymbol converts BTC/USDT to BTCUSDT.
func ExchangeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// FetchAndCache downloads the latest candles of symbol and stores them.
// It returns the number of candles fetched.
func (t *Tracker) FetchAndCache(ctx context.Context, symbol string) (int, error) {
	klines, err := t.client.GetKlines(ctx, ExchangeSymbol(symbol), t.interval, t.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch candles for %s: %w", symbol, err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, models.Candle{
			Symbol:    symbol,
			Timestamp: k.OpenTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}

	if err := t.store.SaveCandles(ctx, candles); err != nil {
		return 0, err
	}
	t.logger.Debug("Candles cached", zap.String("symbol", symbol), zap.Int("count", len(candles)))
	return len(candles), nil
}

// FetchAll refreshes the candle cache of every tracked symbol. A failing symbol
// does not stop the others; the returned map holds the errors by symbol.
func (t *Tracker) FetchAll(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for _, symbol := range t.symbols {
		if _, err := t.FetchAndCache(ctx, symbol); err != nil {
			t.logger.Warn("Failed to refresh candles", zap.String("symbol", symbol), zap.Error(err))
			failures[symbol] = err
		}
	}
	return failures
}

// CurrentPrice returns the live ticker price of symbol. When the exchange
// cannot be reached the latest cached close is used instead.
func (t *Tracker) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := t.client.GetTickerPrice(ctx, ExchangeSymbol(symbol))
	if err == nil {
		return price, nil
	}
	if ctx.Err() != nil {
		return decimal.Zero, ctx.Err()
	}

	cached, at, cacheErr := t.store.LatestClose(ctx, symbol)
	if cacheErr != nil {
		return decimal.Zero, fmt.Errorf("no price for %s: %w", symbol, err)
	}
	t.logger.Warn("Using cached close as price",
		zap.String("symbol", symbol),
		zap.Time("candle_time", at),
		zap.Error(err),
	)
	return cached, nil
}

// Closes returns up to limit recent closes of symbol from the cache, oldest first.
func (t *Tracker) Closes(ctx context.Context, symbol string, limit int) ([]float64, error) {
	closes, err := t.store.Closes(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = c.InexactFloat64()
	}
	return out, nil
}

// PriceLookup resolves the current price of each symbol once and returns a
// lookup over the results. Symbols without a price are left out.
func (t *Tracker) PriceLookup(ctx context.Context, symbols []string) ledger.PriceLookup {
	prices := make(map[string]decimal.Decimal, len(symbols))
	for _, s := range symbols {
		p, err := t.CurrentPrice(ctx, s)
		if err != nil || !p.IsPositive() {
			continue
		}
		prices[s] = p
	}
	return func(symbol string) (decimal.Decimal, bool) {
		p, ok := prices[symbol]
		return p, ok
	}
}
