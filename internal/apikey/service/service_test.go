package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/apicredits/internal/apikey/domain"
	"github.com/smallbiznis/apicredits/internal/apikey/repository"
	"github.com/smallbiznis/apicredits/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var plainKeyPattern = regexp.MustCompile(`^sk_[0-9a-z]+_[0-9a-f]{48}$`)

func newTestService(t *testing.T) (apikeydomain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	return New(Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.NewMemoryRepository(),
		Clock: clk,
	}), clk
}

func TestCreateReturnsPlaintextOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.Create(ctx, "user_123", apikeydomain.CreateRequest{Name: "Production"})
	require.NoError(t, err)
	assert.Regexp(t, plainKeyPattern, created.Key)
	assert.Equal(t, apikeydomain.StatusActive, created.Status)
	assert.Equal(t, []string{apikeydomain.ScopeRequestsWrite}, created.Scopes)

	keys, err := svc.List(ctx, "user_123")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, created.ID, keys[0].ID)
	assert.NotEqual(t, created.Key, keys[0].Key)
	assert.Contains(t, keys[0].Key, "...")
	assert.Equal(t, created.Key[len(created.Key)-4:], keys[0].Key[len(keys[0].Key)-4:])

	others, err := svc.List(ctx, "someone_else")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, "user_123", apikeydomain.CreateRequest{Name: "  "})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidName)
	_, err = svc.Create(ctx, "user_123", apikeydomain.CreateRequest{Name: "x", Scopes: []string{"admin"}})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidScope)
	_, err = svc.Create(ctx, "", apikeydomain.CreateRequest{Name: "x"})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidUserID)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, clk := newTestService(t)

	created, err := svc.Create(ctx, "user_123", apikeydomain.CreateRequest{Name: "Production"})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	key, err := svc.Authenticate(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, "user_123", key.UserID)
	require.NotNil(t, key.LastUsedAt)
	assert.Equal(t, clk.Now(), *key.LastUsedAt)

	keys, err := svc.List(ctx, "user_123")
	require.NoError(t, err)
	require.NotNil(t, keys[0].LastUsed)

	_, err = svc.Authenticate(ctx, "sk_nope_0000")
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)
	_, err = svc.Authenticate(ctx, "not-a-key")
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)
}

func TestRevokedKeyFailsAuthentication(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.Create(ctx, "user_123", apikeydomain.CreateRequest{Name: "Staging"})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, "user_123", created.ID))
	require.NoError(t, svc.Revoke(ctx, "user_123", created.ID))
	require.NoError(t, svc.Revoke(ctx, "user_123", "key_MISSING"))
	assert.ErrorIs(t, svc.Revoke(ctx, "user_123", " "), apikeydomain.ErrInvalidKeyID)

	_, err = svc.Authenticate(ctx, created.Key)
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)

	keys, err := svc.List(ctx, "user_123")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, apikeydomain.StatusInactive, keys[0].Status)
}

func TestRotateKeepsOldKeyDuringGracePeriod(t *testing.T) {
	ctx := context.Background()
	svc, clk := newTestService(t)

	created, err := svc.Create(ctx, "user_123", apikeydomain.CreateRequest{Name: "Production"})
	require.NoError(t, err)

	rotated, err := svc.Rotate(ctx, "user_123", created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, rotated.ID)
	require.NotNil(t, rotated.RotatedFromKeyID)
	assert.Equal(t, created.ID, *rotated.RotatedFromKeyID)

	_, err = svc.Authenticate(ctx, created.Key)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, rotated.Key)
	require.NoError(t, err)

	clk.Advance(apiKeyRotationGracePeriod + time.Second)
	_, err = svc.Authenticate(ctx, created.Key)
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)
	_, err = svc.Authenticate(ctx, rotated.Key)
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, "user_123", created.ID)
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound)
}
