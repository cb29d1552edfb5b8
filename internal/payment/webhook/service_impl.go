package webhook

import (
	"context"
	"errors"
	"fmt"

	creditdomain "github.com/smallbiznis/apicredits/internal/credit/domain"
	obsmetrics "github.com/smallbiznis/apicredits/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Verifier   paymentdomain.EventVerifier
	Credits    creditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	verifier   paymentdomain.EventVerifier
	credits    creditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		verifier:   p.Verifier,
		credits:    p.Credits,
		obsMetrics: p.ObsMetrics,
	}
}

// Receive verifies and applies a provider notification. Only a bad
// signature, a malformed body or a store failure is returned as an error;
// ignored and incomplete events are acknowledged so the provider stops
// redelivering them.
func (s *Service) Receive(ctx context.Context, payload []byte, signatureHeader string) (paymentdomain.Outcome, error) {
	if err := s.verifier.Verify(payload, signatureHeader); err != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, "unknown", string(paymentdomain.OutcomeRejected))
		s.log.Warn("payment webhook signature rejected", zap.Int("payload_bytes", len(payload)))
		return paymentdomain.OutcomeRejected, paymentdomain.ErrInvalidSignature
	}

	event, err := s.verifier.Parse(payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.obsMetrics.RecordPaymentEvent(ctx, "other", string(paymentdomain.OutcomeIgnored))
			return paymentdomain.OutcomeIgnored, nil
		}
		s.obsMetrics.RecordPaymentEvent(ctx, "unknown", string(paymentdomain.OutcomeRejected))
		return paymentdomain.OutcomeRejected, err
	}

	credits, userID, err := paymentdomain.ParseMetadata(event.Metadata)
	if err != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Type, string(paymentdomain.OutcomeIncompleteMetadata))
		s.log.Warn("payment webhook missing metadata",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.TransactionID),
		)
		return paymentdomain.OutcomeIncompleteMetadata, nil
	}

	res, err := s.credits.Grant(ctx, creditdomain.GrantRequest{
		TransactionID: event.TransactionID,
		UserID:        userID,
		Amount:        credits,
		Source:        creditdomain.SourceCheckout,
	})
	if err != nil {
		s.log.Error("failed to apply checkout credits",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.TransactionID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return paymentdomain.OutcomeRejected, fmt.Errorf("grant checkout credits: %w", err)
	}

	outcome := paymentdomain.OutcomeApplied
	if !res.Applied {
		outcome = paymentdomain.OutcomeDuplicate
	}
	s.obsMetrics.RecordPaymentEvent(ctx, event.Type, string(outcome))
	s.log.Info("payment webhook processed",
		zap.String("event_id", event.ID),
		zap.String("session_id", event.TransactionID),
		zap.String("user_id", userID),
		zap.Int64("credits", credits),
		zap.String("outcome", string(outcome)),
		zap.Int64("balance", res.Balance),
	)
	return outcome, nil
}
