package domain

import (
	"context"
	"strconv"
	"strings"
)

const (
	CurrencyUSD = "usd"

	MetadataCredits = "credits"
	MetadataUserID  = "userId"

	// MaxCredits bounds one purchase. It matches the largest single grant
	// the credit ledger accepts.
	MaxCredits int64 = 1_000_000_000
)

// PurchaseRequest is a validated request for a provider-hosted checkout.
type PurchaseRequest struct {
	UserID         string
	Credits        int64
	UnitPriceCents int64
	Currency       string
	SuccessURL     string
	CancelURL      string
}

type CheckoutSession struct {
	ID       string
	URL      string
	Metadata map[string]string
}

// ConfirmationEvent is a verified provider notification. TransactionID is
// the checkout session id echoed back by the provider.
type ConfirmationEvent struct {
	ID            string
	Type          string
	TransactionID string
	Metadata      map[string]string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	RawPayload    []byte
}

type Outcome string

const (
	OutcomeApplied            Outcome = "applied"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeIgnored            Outcome = "ignored"
	OutcomeIncompleteMetadata Outcome = "incomplete_metadata"
	OutcomeRejected           Outcome = "rejected"
)

type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req PurchaseRequest) (*CheckoutSession, error)
}

// EventVerifier authenticates and decodes provider notifications. Verify
// must succeed before Parse is called.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) error
	Parse(payload []byte) (*ConfirmationEvent, error)
}

// Metadata builds the opaque map carried through the provider.
func Metadata(credits int64, userID string) map[string]string {
	return map[string]string{
		MetadataCredits: strconv.FormatInt(credits, 10),
		MetadataUserID:  userID,
	}
}

// ParseMetadata reads back the values written by Metadata.
func ParseMetadata(metadata map[string]string) (int64, string, error) {
	userID := strings.TrimSpace(metadata[MetadataUserID])
	rawCredits := strings.TrimSpace(metadata[MetadataCredits])
	if userID == "" || rawCredits == "" {
		return 0, "", ErrIncompleteMetadata
	}
	credits, err := strconv.ParseInt(rawCredits, 10, 64)
	if err != nil || credits <= 0 || credits > MaxCredits {
		return 0, "", ErrIncompleteMetadata
	}
	return credits, userID, nil
}
