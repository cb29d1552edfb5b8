package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	apikeydomain "github.com/smallbiznis/apicredits/internal/apikey/domain"
)

type memoryRepo struct {
	mu   sync.RWMutex
	keys map[string]apikeydomain.APIKey // by key id
}

func NewMemoryRepository() apikeydomain.Repository {
	return &memoryRepo{keys: make(map[string]apikeydomain.APIKey)}
}

func (r *memoryRepo) Insert(_ context.Context, key *apikeydomain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key.KeyID] = cloneKey(*key)
	return nil
}

func (r *memoryRepo) Update(_ context.Context, key *apikeydomain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.update(key)
	return nil
}

func (r *memoryRepo) FindByKeyID(_ context.Context, userID, keyID string) (*apikeydomain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[keyID]
	if !ok || key.UserID != userID {
		return nil, nil
	}
	found := cloneKey(key)
	return &found, nil
}

func (r *memoryRepo) FindByHash(_ context.Context, hash string) (*apikeydomain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.keys {
		if key.KeyHash == hash {
			found := cloneKey(key)
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memoryRepo) List(_ context.Context, userID string) ([]apikeydomain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]apikeydomain.APIKey, 0)
	for _, key := range r.keys {
		if key.UserID == userID {
			keys = append(keys, cloneKey(key))
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].ID > keys[j].ID
		}
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

func (r *memoryRepo) Rotate(_ context.Context, current, next *apikeydomain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.update(current)
	r.keys[next.KeyID] = cloneKey(*next)
	return nil
}

func (r *memoryRepo) TouchLastUsed(_ context.Context, keyID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[keyID]
	if !ok {
		return nil
	}
	key.LastUsedAt = &at
	r.keys[keyID] = key
	return nil
}

// update keeps the immutable identity fields of the stored key.
func (r *memoryRepo) update(key *apikeydomain.APIKey) {
	existing, ok := r.keys[key.KeyID]
	if !ok || existing.UserID != key.UserID {
		return
	}
	updated := cloneKey(*key)
	updated.KeyHash = existing.KeyHash
	updated.KeyHint = existing.KeyHint
	updated.CreatedAt = existing.CreatedAt
	r.keys[key.KeyID] = updated
}

func cloneKey(key apikeydomain.APIKey) apikeydomain.APIKey {
	key.Scopes = append([]string(nil), key.Scopes...)
	return key
}
