package domain

import "errors"

var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidCredits     = errors.New("invalid_credits")
	ErrInvalidUserID      = errors.New("invalid_user_id")
	ErrUpstreamPayment    = errors.New("upstream_payment_error")
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrIncompleteMetadata = errors.New("incomplete_metadata")
	ErrEventIgnored       = errors.New("event_ignored")
)
