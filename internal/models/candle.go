package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a cached OHLCV bar.
type Candle struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	Symbol    string          `gorm:"uniqueIndex:idx_ohlcv_symbol_ts;not null" json:"symbol"`
	Timestamp time.Time       `gorm:"uniqueIndex:idx_ohlcv_symbol_ts;not null" json:"timestamp"`
	Open      decimal.Decimal `gorm:"type:text;not null" json:"open"`
	High      decimal.Decimal `gorm:"type:text;not null" json:"high"`
	Low       decimal.Decimal `gorm:"type:text;not null" json:"low"`
	Close     decimal.Decimal `gorm:"type:text;not null" json:"close"`
	Volume    decimal.Decimal `gorm:"type:text;not null" json:"volume"`
}

// TableName overrides the table name used by gorm.
func (Candle) TableName() string {
	return "ohlcv"
}
