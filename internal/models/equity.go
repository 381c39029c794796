package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquitySnapshot is a point-in-time valuation of the account.
type EquitySnapshot struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time       `gorm:"index;not null" json:"timestamp"`
	Cash           decimal.Decimal `gorm:"type:text;not null" json:"cash"`
	PositionsValue decimal.Decimal `gorm:"type:text;not null" json:"positions_value"`
	TotalEquity    decimal.Decimal `gorm:"type:text;not null" json:"total_equity"`
}

// TableName overrides the table name used by gorm.
func (EquitySnapshot) TableName() string {
	return "equity_history"
}
