package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// APIKey stores hashed API credentials owned by a user.
type APIKey struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	KeyID            string         `gorm:"column:key_id;type:varchar(64);not null;uniqueIndex:ux_api_keys_key_id"`
	UserID           string         `gorm:"column:user_id;type:varchar(191);not null;index:ix_api_keys_user_id"`
	Name             string         `gorm:"type:varchar(255);not null"`
	Scopes           pq.StringArray `gorm:"type:text;not null"`
	KeyHash          string         `gorm:"column:key_hash;type:varchar(64);not null;uniqueIndex:ux_api_keys_key_hash"`
	KeyHint          string         `gorm:"column:key_hint;type:varchar(16);not null"`
	IsActive         bool           `gorm:"column:is_active;not null"`
	CreatedAt        time.Time      `gorm:"not null"`
	UpdatedAt        time.Time      `gorm:"not null"`
	LastUsedAt       *time.Time     `gorm:"column:last_used_at"`
	ExpiresAt        *time.Time     `gorm:"column:expires_at"`
	RotatedFromKeyID *string        `gorm:"column:rotated_from_key_id;type:varchar(64)"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// Usable reports whether the key may authenticate at now.
func (k *APIKey) Usable(now time.Time) bool {
	if k == nil || !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}
