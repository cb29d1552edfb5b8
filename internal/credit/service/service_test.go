package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/apicredits/internal/config"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
	"github.com/smallbiznis/apicredits/internal/credit/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, initial int64) creditdomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{
		Cfg:   config.Config{CreditsInitialBalance: initial},
		Log:   zap.NewNop(),
		GenID: node,
		Store: repository.NewMemoryStore(),
	})
}

func TestBalanceSeedsNewUsersOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 750)

	balance, err := svc.Balance(ctx, "user_123")
	require.NoError(t, err)
	assert.Equal(t, int64(750), balance)

	balance, err = svc.Balance(ctx, "user_123")
	require.NoError(t, err)
	assert.Equal(t, int64(750), balance)
}

func TestGrantIsIdempotentPerTransaction(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 0)

	first, err := svc.Grant(ctx, creditdomain.GrantRequest{TransactionID: "cs_1", UserID: "user_1", Amount: 1000})
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, int64(1000), first.Balance)

	second, err := svc.Grant(ctx, creditdomain.GrantRequest{TransactionID: "cs_1", UserID: "user_1", Amount: 1000})
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, int64(1000), second.Balance)
}

func TestGrantValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 0)

	_, err := svc.Grant(ctx, creditdomain.GrantRequest{TransactionID: "cs_1", UserID: "", Amount: 10})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidUserID)
	_, err = svc.Grant(ctx, creditdomain.GrantRequest{TransactionID: " ", UserID: "user_1", Amount: 10})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidTransactionID)
	_, err = svc.Grant(ctx, creditdomain.GrantRequest{TransactionID: "cs_1", UserID: "user_1", Amount: 0})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidAmount)
	_, err = svc.Grant(ctx, creditdomain.GrantRequest{TransactionID: "cs_1", UserID: "user_1", Amount: creditdomain.MaxAmount + 1})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidAmount)
	_, err = svc.Adjust(ctx, creditdomain.AdjustRequest{UserID: "user_1", Amount: creditdomain.MaxAmount + 1})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidAmount)
}

func TestAdjustWithIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 750)

	balance, err := svc.Adjust(ctx, creditdomain.AdjustRequest{UserID: "user_1", Amount: 100, IdempotencyKey: "retry-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(850), balance)

	balance, err = svc.Adjust(ctx, creditdomain.AdjustRequest{UserID: "user_1", Amount: 100, IdempotencyKey: "retry-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(850), balance)

	balance, err = svc.Adjust(ctx, creditdomain.AdjustRequest{UserID: "user_1", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(950), balance)

	balance, err = svc.Adjust(ctx, creditdomain.AdjustRequest{UserID: "user_1", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1050), balance)

	_, err = svc.Adjust(ctx, creditdomain.AdjustRequest{UserID: "user_1", Amount: -5})
	assert.ErrorIs(t, err, creditdomain.ErrInvalidAmount)
}

func TestConsume(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 2)

	balance, err := svc.Consume(ctx, "user_1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	_, err = svc.Consume(ctx, "user_1", 1)
	assert.ErrorIs(t, err, creditdomain.ErrInsufficientCredits)
}
