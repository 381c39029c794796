package binance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"paper-trade-bot-go/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.binance.com/api/v3"
	maxRetries     = 3
)

// ErrInvalidResponse is returned when a response body cannot be decoded.
var ErrInvalidResponse = errors.New("invalid response")

// RestClientInterface defines the public market-data endpoints used by the bot.
type RestClientInterface interface {
	GetServerTime(ctx context.Context) (int64, error)
	GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
}

// RestClient is a client for the public Binance REST API. No keys are needed;
// orders are never routed to the exchange.
type RestClient struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff time.Duration
}

// ensure RestClient implements the interface
var _ RestClientInterface = (*RestClient)(nil)

// NewRestClient creates a new Binance market-data client.
func NewRestClient(cfg config.Market, logger *zap.Logger) *RestClient {
	url := cfg.BaseURL
	if url == "" {
		url = defaultBaseURL
	}
	logger.Info("Using Binance public market data", zap.String("base_url", url))

	client := resty.New().SetBaseURL(url)
	if cfg.TimeoutSeconds > 0 {
		client.SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:  client,
		logger:  logger,
		limiter: limiter,
		backoff: time.Second,
	}
}

// GetServerTime fetches the current server time from Binance.
// This is a good endpoint to test connectivity.
func (c *RestClient) GetServerTime(ctx context.Context) (int64, error) {
	type ServerTimeResponse struct {
		ServerTime int64 `json:"serverTime"`
	}

	req := c.client.R().
		SetResult(&ServerTimeResponse{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/time", req)
	if err != nil {
		c.logger.Error("Failed to get server time", zap.Error(err))
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}

	result := resp.Result().(*ServerTimeResponse)
	return result.ServerTime, nil
}

// TickerPrice represents the response for a single ticker price.
type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetTickerPrice fetches the latest price of one exchange symbol, e.g. BTCUSDT.
func (c *RestClient) GetTickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	req := c.client.R().
		SetQueryParam("symbol", symbol).
		SetResult(&TickerPrice{})

	resp, err := c.doRequest(ctx, http.MethodGet, "/ticker/price", req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get ticker price for %s: %w", symbol, err)
	}

	result := resp.Result().(*TickerPrice)
	price, err := decimal.NewFromString(result.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q for %s", ErrInvalidResponse, result.Price, symbol)
	}
	return price, nil
}

// Kline is one candlestick bar.
type Kline struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// GetKlines fetches the most recent limit candles of symbol, oldest first.
func (c *RestClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	var raw [][]any

	req := c.client.R().
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		}).
		SetResult(&raw)

	resp, err := c.doRequest(ctx, http.MethodGet, "/klines", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	rows := *resp.Result().(*[][]any)
	klines := make([]Kline, 0, len(rows))
	for i, row := range rows {
		k, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("%w: kline %d for %s: %v", ErrInvalidResponse, i, symbol, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []any) (Kline, error) {
	if len(row) < 7 {
		return Kline{}, fmt.Errorf("expected at least 7 fields, got %d", len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("open time is %T", row[0])
	}
	closeTime, ok := row[6].(float64)
	if !ok {
		return Kline{}, fmt.Errorf("close time is %T", row[6])
	}

	var values [5]decimal.Decimal
	for i := range values {
		s, ok := row[i+1].(string)
		if !ok {
			return Kline{}, fmt.Errorf("field %d is %T", i+1, row[i+1])
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return Kline{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	return Kline{
		OpenTime:  time.UnixMilli(int64(openTime)).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		CloseTime: time.UnixMilli(int64(closeTime)).UTC(),
	}, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	shouldRetry := false

	req.SetContext(ctx)

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry = false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			err = fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
			if statusCode == http.StatusTooManyRequests || statusCode == http.StatusTeapot { // HTTP 429 or 418
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, convErr := strconv.Atoi(retryAfterHeader); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else if ctx.Err() == nil { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry || i == maxRetries-1 {
			break
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !shouldRetry {
		return nil, err
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
