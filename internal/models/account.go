package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountID is the primary key of the only account row.
const AccountID = 1

// Account is the singleton cash account. The check constraint keeps the table
// to a single row.
type Account struct {
	ID              uint            `gorm:"primaryKey;autoIncrement:false;check:chk_account_singleton,id = 1" json:"-"`
	CashBalance     decimal.Decimal `gorm:"type:text;not null" json:"cash_balance"`
	StartingBalance decimal.Decimal `gorm:"type:text;not null" json:"starting_balance"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName overrides the table name used by gorm.
func (Account) TableName() string {
	return "account"
}
