package domain

import (
	"context"
	"errors"
	"time"
)

const (
	ScopeRequestsWrite = "requests:write"

	StatusActive   = "active"
	StatusExpired  = "expired"
	StatusInactive = "inactive"
)

type Repository interface {
	Insert(ctx context.Context, key *APIKey) error
	Update(ctx context.Context, key *APIKey) error
	FindByKeyID(ctx context.Context, userID, keyID string) (*APIKey, error)
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
	List(ctx context.Context, userID string) ([]APIKey, error)
	// Rotate persists the expiring current key and its replacement together.
	Rotate(ctx context.Context, current, next *APIKey) error
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
}

type Service interface {
	List(ctx context.Context, userID string) ([]Response, error)
	Create(ctx context.Context, userID string, req CreateRequest) (*SecretResponse, error)
	Rotate(ctx context.Context, userID, keyID string) (*SecretResponse, error)
	Revoke(ctx context.Context, userID, keyID string) error
	Authenticate(ctx context.Context, raw string) (*APIKey, error)
}

type CreateRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// Response is the listing view of a key. It never carries the secret.
type Response struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Key              string     `json:"key"`
	Scopes           []string   `json:"scopes"`
	Status           string     `json:"status"`
	Created          time.Time  `json:"created"`
	LastUsed         *time.Time `json:"lastUsed"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RotatedFromKeyID *string    `json:"rotatedFrom,omitempty"`
}

// SecretResponse is returned once, on create and rotate.
type SecretResponse struct {
	Response
	Key string `json:"key"`
}

var (
	ErrInvalidUserID = errors.New("invalid_user_id")
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidKeyID  = errors.New("invalid_key_id")
	ErrInvalidScope  = errors.New("invalid_scope")
	ErrNotFound      = errors.New("not_found")
	ErrUnauthorized  = errors.New("unauthorized")
)
