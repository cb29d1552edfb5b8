package repository

import (
	"context"
	"time"

	apikeydomain "github.com/smallbiznis/apicredits/internal/apikey/domain"
	"gorm.io/gorm"
)

const apiKeyColumns = `id, key_id, user_id, name, scopes, key_hash, key_hint, is_active, created_at, updated_at, last_used_at, expires_at, rotated_from_key_id`

type repo struct {
	db *gorm.DB
}

func NewSQLRepository(db *gorm.DB) apikeydomain.Repository {
	return &repo{db: db}
}

func (r *repo) Insert(ctx context.Context, key *apikeydomain.APIKey) error {
	return insertKey(ctx, r.db, key)
}

func (r *repo) Update(ctx context.Context, key *apikeydomain.APIKey) error {
	return updateKey(ctx, r.db, key)
}

func (r *repo) FindByKeyID(ctx context.Context, userID, keyID string) (*apikeydomain.APIKey, error) {
	return r.findOne(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = ? AND key_id = ?`,
		userID, keyID,
	)
}

func (r *repo) FindByHash(ctx context.Context, hash string) (*apikeydomain.APIKey, error) {
	return r.findOne(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ?`,
		hash,
	)
}

func (r *repo) List(ctx context.Context, userID string) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) Rotate(ctx context.Context, current, next *apikeydomain.APIKey) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateKey(ctx, tx, current); err != nil {
			return err
		}
		return insertKey(ctx, tx, next)
	})
}

func (r *repo) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE api_keys SET last_used_at = ? WHERE key_id = ?`,
		at, keyID,
	).Error
}

func (r *repo) findOne(ctx context.Context, query string, args ...interface{}) (*apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&keys).Error; err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

func insertKey(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO api_keys (`+apiKeyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.KeyID,
		key.UserID,
		key.Name,
		key.Scopes,
		key.KeyHash,
		key.KeyHint,
		key.IsActive,
		key.CreatedAt,
		key.UpdatedAt,
		key.LastUsedAt,
		key.ExpiresAt,
		key.RotatedFromKeyID,
	).Error
}

func updateKey(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys
		 SET name = ?, scopes = ?, is_active = ?, updated_at = ?, last_used_at = ?, expires_at = ?, rotated_from_key_id = ?
		 WHERE user_id = ? AND key_id = ?`,
		key.Name,
		key.Scopes,
		key.IsActive,
		key.UpdatedAt,
		key.LastUsedAt,
		key.ExpiresAt,
		key.RotatedFromKeyID,
		key.UserID,
		key.KeyID,
	).Error
}
