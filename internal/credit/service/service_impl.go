package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/apicredits/internal/config"
	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
	obsmetrics "github.com/smallbiznis/apicredits/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Store      creditdomain.Store
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log            *zap.Logger
	genID          *snowflake.Node
	store          creditdomain.Store
	obsMetrics     *obsmetrics.Metrics
	initialBalance int64

	seeded sync.Map
}

func NewService(p Params) creditdomain.Service {
	return &Service{
		log:            p.Log.Named("credit.service"),
		genID:          p.GenID,
		store:          p.Store,
		obsMetrics:     p.ObsMetrics,
		initialBalance: p.Cfg.CreditsInitialBalance,
	}
}

func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return 0, err
	}
	if err := s.ensureSeeded(ctx, userID); err != nil {
		return 0, err
	}
	return s.store.Get(ctx, userID)
}

func (s *Service) Grant(ctx context.Context, req creditdomain.GrantRequest) (*creditdomain.GrantResult, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	transactionID := strings.TrimSpace(req.TransactionID)
	if transactionID == "" {
		return nil, creditdomain.ErrInvalidTransactionID
	}
	if req.Amount <= 0 || req.Amount > creditdomain.MaxAmount {
		return nil, creditdomain.ErrInvalidAmount
	}
	source := req.Source
	if source == "" {
		source = creditdomain.SourceCheckout
	}

	if err := s.ensureSeeded(ctx, userID); err != nil {
		return nil, err
	}

	balance, applied, err := s.store.ApplyGrant(ctx, creditdomain.Grant{
		ID:            s.genID.Generate(),
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        req.Amount,
		Source:        source,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("apply grant: %w", err)
	}

	outcome := "applied"
	if !applied {
		outcome = "duplicate"
	}
	s.obsMetrics.RecordCreditGrant(ctx, string(source), outcome)
	s.log.Info("credit grant processed",
		zap.String("user_id", userID),
		zap.String("transaction_id", transactionID),
		zap.String("source", string(source)),
		zap.Int64("amount", req.Amount),
		zap.Bool("applied", applied),
		zap.Int64("balance", balance),
	)

	return &creditdomain.GrantResult{Balance: balance, Applied: applied}, nil
}

// Adjust adds credits outside checkout. Without an idempotency key every call
// is a distinct transaction.
func (s *Service) Adjust(ctx context.Context, req creditdomain.AdjustRequest) (int64, error) {
	userID, err := normalizeUserID(req.UserID)
	if err != nil {
		return 0, err
	}
	if req.Amount <= 0 || req.Amount > creditdomain.MaxAmount {
		return 0, creditdomain.ErrInvalidAmount
	}

	transactionID := "adjust:" + userID + ":" + s.genID.Generate().String()
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		transactionID = "adjust:" + userID + ":" + key
	}

	res, err := s.Grant(ctx, creditdomain.GrantRequest{
		TransactionID: transactionID,
		UserID:        userID,
		Amount:        req.Amount,
		Source:        creditdomain.SourceAdjustment,
	})
	if err != nil {
		return 0, err
	}
	return res.Balance, nil
}

func (s *Service) Consume(ctx context.Context, userID string, amount int64) (int64, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return 0, err
	}
	if amount <= 0 || amount > creditdomain.MaxAmount {
		return 0, creditdomain.ErrInvalidAmount
	}
	if err := s.ensureSeeded(ctx, userID); err != nil {
		return 0, err
	}
	return s.store.Consume(ctx, userID, amount)
}

// ensureSeeded gives a user the starting balance exactly once. The seed is an
// ordinary grant keyed by user, so it is idempotent across restarts and replicas.
func (s *Service) ensureSeeded(ctx context.Context, userID string) error {
	if s.initialBalance <= 0 {
		return nil
	}
	if _, ok := s.seeded.Load(userID); ok {
		return nil
	}
	_, applied, err := s.store.ApplyGrant(ctx, creditdomain.Grant{
		ID:            s.genID.Generate(),
		TransactionID: "seed:" + userID,
		UserID:        userID,
		Amount:        s.initialBalance,
		Source:        creditdomain.SourceSeed,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("seed balance: %w", err)
	}
	if applied {
		s.log.Info("seeded credit balance", zap.String("user_id", userID), zap.Int64("amount", s.initialBalance))
	}
	s.seeded.Store(userID, struct{}{})
	return nil
}

func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", creditdomain.ErrInvalidUserID
	}
	return userID, nil
}
