package domain

import (
	"context"
	"errors"
)

const (
	// MaxAmount bounds a single balance change.
	MaxAmount int64 = 1_000_000_000
	// MaxBalance bounds a stored balance. It is below 2^53 so Lua scripts
	// compare it exactly.
	MaxBalance int64 = 1_000_000_000_000_000
)

// Store persists balances and the transaction ledger. Every method is atomic
// with respect to concurrent callers on the same user.
type Store interface {
	// Get returns the balance of userID, or 0 when the user is unknown.
	Get(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, balance int64) error
	// Increment fails with ErrBalanceOverflow when the result would exceed
	// MaxBalance.
	Increment(ctx context.Context, userID string, amount int64) (int64, error)
	// ApplyGrant records grant.TransactionID and increments the balance in one
	// step. A transaction id that was already recorded leaves the balance
	// untouched and reports applied=false. A grant that would exceed
	// MaxBalance fails with ErrBalanceOverflow and is not recorded.
	ApplyGrant(ctx context.Context, grant Grant) (balance int64, applied bool, err error)
	// Consume decrements the balance, failing with ErrInsufficientCredits
	// instead of going negative.
	Consume(ctx context.Context, userID string, amount int64) (int64, error)
}

type Service interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Grant(ctx context.Context, req GrantRequest) (*GrantResult, error)
	Adjust(ctx context.Context, req AdjustRequest) (int64, error)
	Consume(ctx context.Context, userID string, amount int64) (int64, error)
}

type GrantRequest struct {
	TransactionID string
	UserID        string
	Amount        int64
	Source        GrantSource
}

type GrantResult struct {
	Balance int64
	Applied bool
}

type AdjustRequest struct {
	UserID         string
	Amount         int64
	IdempotencyKey string
}

var (
	ErrInvalidUserID        = errors.New("invalid_user_id")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidBalance       = errors.New("invalid_balance")
	ErrInvalidTransactionID = errors.New("invalid_transaction_id")
	ErrInsufficientCredits  = errors.New("insufficient_credits")
	ErrBalanceOverflow      = errors.New("balance_overflow")
)
