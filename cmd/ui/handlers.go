package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"paper-trade-bot-go/internal/database"
	"paper-trade-bot-go/internal/models"
	"paper-trade-bot-go/internal/report"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxTradesLimit = 1000

// Store is the read-only view of the database the handlers need.
type Store interface {
	report.Source
	Positions(ctx context.Context) ([]models.Position, error)
}

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log   *zap.Logger
	store Store
	now   func() time.Time
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store Store) *APIHandler {
	return &APIHandler{log: log, store: store, now: time.Now}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

// AccountResponse is the structure for the /api/account endpoint.
type AccountResponse struct {
	CashBalance     decimal.Decimal `json:"cash_balance"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	TotalEquity     decimal.Decimal `json:"total_equity"`
	OpenPositions   int             `json:"open_positions"`
	EquityAsOf      *time.Time      `json:"equity_as_of,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// currentEquity returns the latest recorded equity, or cash plus positions at
// cost when nothing was recorded yet.
func (h *APIHandler) currentEquity(ctx context.Context, acc models.Account, positions []models.Position) (decimal.Decimal, *time.Time, error) {
	history, err := h.store.EquityHistory(ctx)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if n := len(history); n > 0 {
		ts := history[n-1].Timestamp
		return history[n-1].TotalEquity, &ts, nil
	}

	total := acc.CashBalance
	for _, p := range positions {
		total = total.Add(p.Amount.Mul(p.AvgEntryPrice))
	}
	return total, nil, nil
}

// AccountHandler returns the cash balance and current equity.
func (h *APIHandler) AccountHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acc, err := h.store.Account(ctx)
	if err != nil {
		h.log.Error("Failed to get account from database", zap.Error(err))
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}
	positions, err := h.store.Positions(ctx)
	if err != nil {
		h.log.Error("Failed to get positions from database", zap.Error(err))
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}
	equity, asOf, err := h.currentEquity(ctx, acc, positions)
	if err != nil {
		h.log.Error("Failed to get equity history", zap.Error(err))
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, AccountResponse{
		CashBalance:     acc.CashBalance,
		StartingBalance: acc.StartingBalance,
		TotalEquity:     equity,
		OpenPositions:   len(positions),
		EquityAsOf:      asOf,
		UpdatedAt:       acc.UpdatedAt,
	})
}

// PositionsHandler returns all open positions.
func (h *APIHandler) PositionsHandler(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.Positions(r.Context())
	if err != nil {
		h.log.Error("Failed to get positions from database", zap.Error(err))
		http.Error(w, "Failed to get positions", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, positions)
}

// TradesHandler returns historical trades, most recent first.
// Optional query parameters: symbol, side and limit.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.TradeFilter{Symbol: q.Get("symbol"), Side: q.Get("side")}

	if filter.Side != "" && filter.Side != "buy" && filter.Side != "sell" {
		http.Error(w, "side must be buy or sell", http.StatusBadRequest)
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		filter.Limit = min(limit, maxTradesLimit)
	}

	trades, err := h.store.Trades(r.Context(), filter)
	if err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	h.writeJSON(w, trades)
}

// StatsDetail holds calculated statistics for a given period.
type StatsDetail struct {
	TotalTrades      int             `json:"total_trades"`
	ProfitableTrades int             `json:"profitable_trades"`
	WinRate          float64         `json:"win_rate"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h StatsDetail   `json:"since_24h"`
	AllTime  StatsDetail   `json:"all_time"`
	Report   report.Report `json:"report"`
}

func statsDetail(trades []models.Trade) StatsDetail {
	s := report.ComputeTradeStats(trades)
	return StatsDetail{
		TotalTrades:      s.Sells,
		ProfitableTrades: s.Wins,
		WinRate:          s.WinRate(),
		TotalProfit:      s.NetProfit,
	}
}

// StatisticsHandler calculates and returns trading statistics.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trades, err := h.store.Trades(ctx, database.TradeFilter{Side: "sell"})
	if err != nil {
		h.log.Error("Failed to get trades for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	since24h := h.now().Add(-24 * time.Hour)
	var recent []models.Trade
	for _, t := range trades {
		if t.Timestamp.After(since24h) {
			recent = append(recent, t)
		}
	}

	acc, err := h.store.Account(ctx)
	if err != nil {
		h.log.Error("Failed to get account for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}
	positions, err := h.store.Positions(ctx)
	if err != nil {
		h.log.Error("Failed to get positions for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}
	equity, _, err := h.currentEquity(ctx, acc, positions)
	if err != nil {
		h.log.Error("Failed to get equity for statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	rep, err := report.NewAnalyzer(h.store).Report(ctx, equity)
	if err != nil {
		h.log.Error("Failed to build report", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, StatisticsResponse{
		Since24h: statsDetail(recent),
		AllTime:  statsDetail(trades),
		Report:   rep,
	})
}

// EquityHandler returns the recorded equity curve, oldest first.
func (h *APIHandler) EquityHandler(w http.ResponseWriter, r *http.Request) {
	history, err := h.store.EquityHistory(r.Context())
	if err != nil {
		h.log.Error("Failed to get equity history", zap.Error(err))
		http.Error(w, "Failed to get equity history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []models.EquitySnapshot{}
	}
	h.writeJSON(w, history)
}
