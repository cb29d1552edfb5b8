package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type GrantSource string

const (
	SourceCheckout   GrantSource = "checkout"
	SourceAdjustment GrantSource = "adjustment"
	SourceSeed       GrantSource = "seed"
	SourceRefund     GrantSource = "refund"
)

// Balance is the current credit balance of a user.
type Balance struct {
	UserID    string    `gorm:"primaryKey;column:user_id;type:varchar(191)"`
	Balance   int64     `gorm:"column:balance;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "credit_balances" }

// Grant records a credit increment applied once per transaction id.
type Grant struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TransactionID string       `gorm:"column:transaction_id;type:varchar(255);not null;uniqueIndex:ux_credit_grants_transaction_id" json:"transaction_id"`
	UserID        string       `gorm:"column:user_id;type:varchar(191);not null;index:ix_credit_grants_user_id" json:"user_id"`
	Amount        int64        `gorm:"column:amount;not null" json:"amount"`
	Source        GrantSource  `gorm:"column:source;type:varchar(32);not null" json:"source"`
	CreatedAt     time.Time    `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName sets the database table name.
func (Grant) TableName() string { return "credit_grants" }
