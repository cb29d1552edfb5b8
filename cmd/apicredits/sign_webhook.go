package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/apicredits/internal/config"
	"github.com/smallbiznis/apicredits/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
	"github.com/spf13/cobra"
)

func signWebhookCmd() *cobra.Command {
	var (
		userID    string
		credits   int64
		sessionID string
		secret    string
	)

	cmd := &cobra.Command{
		Use:   "sign-webhook",
		Short: "Print a signed checkout.session.completed event for local testing",
		Long: `Print a signed checkout.session.completed event for local testing.

The secret defaults to STRIPE_WEBHOOK_SECRET.

Example:
  apicredits sign-webhook --user user_123 --credits 1000 > event.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(secret) == "" {
				secret = config.Load().Stripe.WebhookSecret
			}
			if strings.TrimSpace(sessionID) == "" {
				sessionID = "cs_test_" + strings.ToLower(ulid.Make().String())
			}

			payload, header, err := signedCompletion(sessionID, userID, credits, secret, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", stripe.SignatureHeaderName, header)
			fmt.Fprintln(out, string(payload))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user to credit")
	cmd.Flags().Int64Var(&credits, "credits", 0, "credits to grant")
	cmd.Flags().StringVar(&sessionID, "session", "", "checkout session id, random when empty")
	cmd.Flags().StringVar(&secret, "secret", "", "webhook signing secret")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("credits")

	return cmd
}

// signedCompletion builds the event body Stripe would send when a checkout
// session completes, and the signature header for it.
func signedCompletion(sessionID, userID string, credits int64, secret string, at time.Time) ([]byte, string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, "", paymentdomain.ErrInvalidUserID
	}
	if credits <= 0 {
		return nil, "", paymentdomain.ErrInvalidCredits
	}
	if strings.TrimSpace(secret) == "" {
		return nil, "", errors.New("webhook secret is required")
	}

	payload, err := json.Marshal(map[string]any{
		"id":      "evt_" + strings.ToLower(ulid.Make().String()),
		"object":  "event",
		"type":    "checkout.session.completed",
		"created": at.Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"object":         "checkout.session",
				"mode":           "payment",
				"payment_status": "paid",
				"currency":       paymentdomain.CurrencyUSD,
				"metadata":       paymentdomain.Metadata(credits, userID),
			},
		},
	})
	if err != nil {
		return nil, "", err
	}

	return payload, stripe.SignatureHeader(secret, payload, at), nil
}
