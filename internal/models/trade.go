package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one executed paper order. Rows are append-only.
// Decimal columns are stored as text to keep exact values.
type Trade struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	Symbol      string              `gorm:"index;not null" json:"symbol"`
	Side        string              `gorm:"not null" json:"side"` // "buy" or "sell"
	Amount      decimal.Decimal     `gorm:"type:text;not null" json:"amount"`
	Price       decimal.Decimal     `gorm:"type:text;not null" json:"price"`
	Fee         decimal.Decimal     `gorm:"type:text;not null" json:"fee"`
	GrossValue  decimal.Decimal     `gorm:"type:text;not null" json:"gross_value"`
	NetValue    decimal.Decimal     `gorm:"type:text;not null" json:"net_value"`
	RealizedPnl decimal.NullDecimal `gorm:"type:text" json:"realized_pnl"`
	Timestamp   time.Time           `gorm:"index;not null" json:"timestamp"`
}

// TableName overrides the table name used by gorm.
func (Trade) TableName() string {
	return "trades"
}
