package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the persisted holding of one symbol. The row is deleted when flat.
type Position struct {
	Symbol        string          `gorm:"primaryKey" json:"symbol"`
	Amount        decimal.Decimal `gorm:"type:text;not null" json:"amount"`
	AvgEntryPrice decimal.Decimal `gorm:"type:text;not null" json:"avg_entry_price"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName overrides the table name used by gorm.
func (Position) TableName() string {
	return "positions"
}
