package repository

import (
	"context"
	"time"

	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sqlStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) creditdomain.Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) Get(ctx context.Context, userID string) (int64, error) {
	if err := checkUser(userID); err != nil {
		return 0, err
	}
	return selectBalance(ctx, s.db, userID)
}

func (s *sqlStore) Set(ctx context.Context, userID string, balance int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if err := checkBalance(balance); err != nil {
		return err
	}
	row := creditdomain.Balance{UserID: userID, Balance: balance, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
	}).Create(&row).Error
}

func (s *sqlStore) Increment(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := checkAmount(userID, amount); err != nil {
		return 0, err
	}
	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = addBalance(ctx, tx, userID, amount)
		return err
	})
	return balance, err
}

func (s *sqlStore) ApplyGrant(ctx context.Context, grant creditdomain.Grant) (int64, bool, error) {
	if err := checkGrant(grant); err != nil {
		return 0, false, err
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}

	var (
		balance int64
		applied bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&grant)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var err error
			balance, err = selectBalance(ctx, tx, grant.UserID)
			return err
		}
		applied = true
		var err error
		balance, err = addBalance(ctx, tx, grant.UserID, grant.Amount)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return balance, applied, nil
}

func (s *sqlStore) Consume(ctx context.Context, userID string, amount int64) (int64, error) {
	if err := checkAmount(userID, amount); err != nil {
		return 0, err
	}
	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Exec(
			`UPDATE credit_balances SET balance = balance - ?, updated_at = ?
			 WHERE user_id = ? AND balance >= ?`,
			amount, time.Now().UTC(), userID, amount,
		)
		if res.Error != nil {
			return res.Error
		}
		var err error
		balance, err = selectBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return creditdomain.ErrInsufficientCredits
		}
		return nil
	})
	return balance, err
}

func addBalance(ctx context.Context, tx *gorm.DB, userID string, amount int64) (int64, error) {
	now := time.Now().UTC()
	row := creditdomain.Balance{UserID: userID, Balance: 0, UpdatedAt: now}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return 0, err
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE credit_balances SET balance = balance + ?, updated_at = ?
		 WHERE user_id = ? AND balance <= ?`,
		amount, now, userID, creditdomain.MaxBalance-amount,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, creditdomain.ErrBalanceOverflow
	}
	return selectBalance(ctx, tx, userID)
}

func selectBalance(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var balances []int64
	err := db.WithContext(ctx).Raw(
		`SELECT balance FROM credit_balances WHERE user_id = ?`,
		userID,
	).Scan(&balances).Error
	if err != nil {
		return 0, err
	}
	if len(balances) == 0 {
		return 0, nil
	}
	return balances[0], nil
}
