// Package checkout turns a purchase request into a provider-hosted payment
// page.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/apicredits/internal/config"
	obsmetrics "github.com/smallbiznis/apicredits/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

type Request struct {
	UserID  string
	Amount  decimal.Decimal
	Credits int64
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Provider   paymentdomain.CheckoutProvider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	provider   paymentdomain.CheckoutProvider
	obsMetrics *obsmetrics.Metrics
	baseURL    string
	timeout    time.Duration
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("checkout.service"),
		provider:   p.Provider,
		obsMetrics: p.ObsMetrics,
		baseURL:    strings.TrimRight(p.Cfg.BaseURL, "/"),
		timeout:    p.Cfg.Stripe.Timeout,
	}
}

// Create validates req and opens a checkout session. The provider is never
// contacted for an invalid request.
func (s *Service) Create(ctx context.Context, req Request) (*paymentdomain.CheckoutSession, error) {
	purchase, err := s.purchaseRequest(req)
	if err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, string(paymentdomain.OutcomeRejected))
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	session, err := s.provider.CreateCheckoutSession(ctx, purchase)
	if err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, "failed")
		s.log.Error("failed to create checkout session",
			zap.String("user_id", purchase.UserID),
			zap.Int64("credits", purchase.Credits),
			zap.Int64("unit_amount", purchase.UnitPriceCents),
			zap.Error(err),
		)
		return nil, paymentdomain.ErrUpstreamPayment
	}

	s.obsMetrics.RecordCheckoutSession(ctx, "created")
	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", purchase.UserID),
		zap.Int64("credits", purchase.Credits),
		zap.Int64("unit_amount", purchase.UnitPriceCents),
	)
	return session, nil
}

func (s *Service) purchaseRequest(req Request) (paymentdomain.PurchaseRequest, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return paymentdomain.PurchaseRequest{}, paymentdomain.ErrInvalidUserID
	}
	cents, err := ToCents(req.Amount)
	if err != nil {
		return paymentdomain.PurchaseRequest{}, err
	}
	if req.Credits <= 0 || req.Credits > paymentdomain.MaxCredits {
		return paymentdomain.PurchaseRequest{}, paymentdomain.ErrInvalidCredits
	}

	return paymentdomain.PurchaseRequest{
		UserID:         userID,
		Credits:        req.Credits,
		UnitPriceCents: cents,
		Currency:       paymentdomain.CurrencyUSD,
		SuccessURL:     s.baseURL + "/dashboard/credits?success=true",
		CancelURL:      s.baseURL + "/dashboard/credits?canceled=true",
	}, nil
}

// ToCents converts a dollar amount to whole cents. Fractions of a cent are
// rejected rather than rounded.
func ToCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Mul(hundred)
	if !cents.IsPositive() || !cents.Equal(cents.Truncate(0)) {
		return 0, paymentdomain.ErrInvalidAmount
	}
	if !cents.LessThanOrEqual(decimal.NewFromInt(99999999)) {
		return 0, paymentdomain.ErrInvalidAmount
	}
	return cents.IntPart(), nil
}
