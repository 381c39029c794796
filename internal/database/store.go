package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paper-trade-bot-go/internal/equity"
	"paper-trade-bot-go/internal/execution"
	"paper-trade-bot-go/internal/ledger"
	"paper-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoAccount is returned when the account row has not been created yet.
var ErrNoAccount = errors.New("account not initialized")

// ErrNoCandles is returned when no candle is cached for a symbol.
var ErrNoCandles = errors.New("no cached candles")

// Store is the persistence adapter of the ledger.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an opened database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// TradeFilter narrows Trades. Zero values mean no filter.
type TradeFilter struct {
	Symbol string
	Side   string
	Limit  int
}

// CommitTrade writes the trade, the resulting position and the account balance
// in one transaction. A flat position is deleted.
func (s *Store) CommitTrade(ctx context.Context, c execution.Commit) (uint, error) {
	trade := models.Trade{
		Symbol:      c.Trade.Symbol,
		Side:        string(c.Trade.Side),
		Amount:      c.Trade.Amount,
		Price:       c.Trade.Price,
		Fee:         c.Trade.Fee,
		GrossValue:  c.Trade.GrossValue,
		NetValue:    c.Trade.NetValue,
		RealizedPnl: c.Trade.RealizedPnl,
		Timestamp:   c.Trade.Timestamp.UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trade).Error; err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}

		if c.Position.Amount.IsZero() {
			if err := tx.Delete(&models.Position{}, "symbol = ?", c.Position.Symbol).Error; err != nil {
				return fmt.Errorf("failed to delete position %s: %w", c.Position.Symbol, err)
			}
		} else {
			pos := models.Position{
				Symbol:        c.Position.Symbol,
				Amount:        c.Position.Amount,
				AvgEntryPrice: c.Position.AvgEntryPrice,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "symbol"}},
				DoUpdates: clause.AssignmentColumns([]string{"amount", "avg_entry_price", "updated_at"}),
			}).Create(&pos).Error
			if err != nil {
				return fmt.Errorf("failed to upsert position %s: %w", c.Position.Symbol, err)
			}
		}

		return saveAccount(tx, c.CashBalance, c.StartingBalance)
	})
	if err != nil {
		return 0, err
	}
	return trade.ID, nil
}

func saveAccount(tx *gorm.DB, cash, starting decimal.Decimal) error {
	acc := models.Account{ID: models.AccountID, CashBalance: cash, StartingBalance: starting}
	if err := tx.Save(&acc).Error; err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// EnsureAccount creates the account row funded with startingBalance unless it
// already exists, and returns it.
func (s *Store) EnsureAccount(ctx context.Context, startingBalance decimal.Decimal) (models.Account, error) {
	acc := models.Account{ID: models.AccountID}
	err := s.db.WithContext(ctx).
		Attrs(models.Account{CashBalance: startingBalance, StartingBalance: startingBalance}).
		FirstOrCreate(&acc, models.Account{ID: models.AccountID}).Error
	if err != nil {
		return acc, fmt.Errorf("failed to ensure account: %w", err)
	}
	return acc, nil
}

// Account returns the account row.
func (s *Store) Account(ctx context.Context) (models.Account, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).First(&acc, models.AccountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return acc, ErrNoAccount
	}
	if err != nil {
		return acc, fmt.Errorf("failed to load account: %w", err)
	}
	return acc, nil
}

// Positions returns every open position ordered by symbol.
func (s *Store) Positions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	if err := s.db.WithContext(ctx).Order("symbol").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	return positions, nil
}

// LoadLedger reads the durable account and positions for restoring the ledger.
func (s *Store) LoadLedger(ctx context.Context) (ledger.Snapshot, error) {
	acc, err := s.Account(ctx)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	positions, err := s.Positions(ctx)
	if err != nil {
		return ledger.Snapshot{}, err
	}

	snap := ledger.Snapshot{
		CashBalance:     acc.CashBalance,
		StartingBalance: acc.StartingBalance,
		Positions:       make([]ledger.Position, 0, len(positions)),
	}
	for _, p := range positions {
		snap.Positions = append(snap.Positions, ledger.Position{
			Symbol:        p.Symbol,
			Amount:        p.Amount,
			AvgEntryPrice: p.AvgEntryPrice,
		})
	}
	return snap, nil
}

// RecordEquity appends an equity snapshot.
func (s *Store) RecordEquity(ctx context.Context, snap equity.Snapshot) error {
	row := models.EquitySnapshot{
		Timestamp:      snap.Timestamp.UTC(),
		Cash:           snap.Cash,
		PositionsValue: snap.PositionsValue,
		TotalEquity:    snap.TotalEquity,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert equity snapshot: %w", err)
	}
	return nil
}

// EquityHistory returns all equity snapshots, oldest first.
func (s *Store) EquityHistory(ctx context.Context) ([]models.EquitySnapshot, error) {
	var rows []models.EquitySnapshot
	if err := s.db.WithContext(ctx).Order("timestamp, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load equity history: %w", err)
	}
	return rows, nil
}

// Trades returns trades newest first.
func (s *Store) Trades(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	q := s.db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if f.Symbol != "" {
		q = q.Where("symbol = ?", f.Symbol)
	}
	if f.Side != "" {
		q = q.Where("side = ?", f.Side)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var trades []models.Trade
	if err := q.Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

// SaveCandles inserts candles, overwriting bars already cached for the same
// symbol and timestamp.
func (s *Store) SaveCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).CreateInBatches(candles, 200).Error
	if err != nil {
		return fmt.Errorf("failed to save candles: %w", err)
	}
	return nil
}

// LatestClose returns the most recent cached close for symbol.
func (s *Store) LatestClose(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	var c models.Candle
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).Order("timestamp DESC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w for %s", ErrNoCandles, symbol)
	}
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to load latest close: %w", err)
	}
	return c.Close, c.Timestamp, nil
}

// Closes returns up to limit of the most recent closes for symbol, oldest first.
func (s *Store) Closes(ctx context.Context, symbol string, limit int) ([]decimal.Decimal, error) {
	q := s.db.WithContext(ctx).Where("symbol = ?", symbol).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var candles []models.Candle
	if err := q.Find(&candles).Error; err != nil {
		return nil, fmt.Errorf("failed to load closes: %w", err)
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[len(candles)-1-i] = c.Close
	}
	return closes, nil
}

// Reset clears trades, positions, equity history and cached candles and
// refunds the account with startingBalance.
func (s *Store) Reset(ctx context.Context, startingBalance decimal.Decimal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.Trade{}, &models.Position{}, &models.EquitySnapshot{}, &models.Candle{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", m, err)
			}
		}
		return saveAccount(tx, startingBalance, startingBalance)
	})
}
