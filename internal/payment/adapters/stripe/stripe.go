package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

const SignatureHeaderName = "Stripe-Signature"

type Config struct {
	SecretKey         string
	WebhookSecret     string
	APIURL            string
	Timeout           time.Duration
	MaxNetworkRetries int64
	Tolerance         time.Duration
}

// Adapter creates checkout sessions through stripe-go and verifies webhook
// notifications with the endpoint secret.
type Adapter struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func New(cfg Config) *Adapter {
	backendConfig := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripego.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelError},
	}
	if url := strings.TrimSpace(cfg.APIURL); url != "" {
		backendConfig.URL = stripego.String(strings.TrimRight(url, "/"))
	}

	backends := &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendConfig),
		Connect: stripego.GetBackend(stripego.ConnectBackend),
		Uploads: stripego.GetBackend(stripego.UploadsBackend),
	}

	return &Adapter{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		tolerance:     cfg.Tolerance,
		now:           time.Now,
	}
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, req paymentdomain.PurchaseRequest) (*paymentdomain.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:               stripego.String(string(stripego.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
					Currency: stripego.String(req.Currency),
					ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripego.String(fmt.Sprintf("%d API Credits", req.Credits)),
						Description: stripego.String(fmt.Sprintf("Purchase of %d API credits for making API requests", req.Credits)),
					},
					UnitAmount: stripego.Int64(req.UnitPriceCents),
				},
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
	}
	params.Context = ctx
	for key, value := range paymentdomain.Metadata(req.Credits, req.UserID) {
		params.AddMetadata(key, value)
	}

	session, err := a.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &paymentdomain.CheckoutSession{
		ID:       session.ID,
		URL:      session.URL,
		Metadata: session.Metadata,
	}, nil
}

func (a *Adapter) Verify(payload []byte, signatureHeader string) error {
	sigHeader := strings.TrimSpace(signatureHeader)
	if sigHeader == "" || a.webhookSecret == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if a.tolerance > 0 {
		seconds, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return paymentdomain.ErrInvalidSignature
		}
		skew := a.now().Sub(time.Unix(seconds, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > a.tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	expected := computeSignature(a.webhookSecret, timestamp, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(payload []byte) (*paymentdomain.ConfirmationEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if stripego.EventType(strings.TrimSpace(event.Type)) != stripego.EventTypeCheckoutSessionCompleted {
		return nil, paymentdomain.ErrEventIgnored
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	return &paymentdomain.ConfirmationEvent{
		ID:            event.ID,
		Type:          event.Type,
		TransactionID: session.ID,
		Metadata:      readMetadata(session.Metadata),
		PaymentStatus: strings.TrimSpace(session.PaymentStatus),
		AmountTotal:   session.AmountTotal,
		Currency:      strings.ToLower(strings.TrimSpace(session.Currency)),
		RawPayload:    payload,
	}, nil
}

// SignatureHeader produces a Stripe-Signature value for payload, as Stripe
// would send it.
func SignatureHeader(secret string, payload []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, computeSignature(secret, timestamp, payload))
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID            string         `json:"id"`
	PaymentStatus string         `json:"payment_status"`
	AmountTotal   int64          `json:"amount_total"`
	Currency      string         `json:"currency"`
	Metadata      map[string]any `json:"metadata"`
}

func computeSignature(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

// readMetadata flattens metadata values to strings. Stripe always sends
// strings, numbers are accepted for hand-built payloads.
func readMetadata(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for key, value := range metadata {
		switch cast := value.(type) {
		case string:
			out[key] = strings.TrimSpace(cast)
		case float64:
			out[key] = strconv.FormatFloat(cast, 'f', -1, 64)
		case json.Number:
			out[key] = cast.String()
		}
	}
	return out
}

var (
	_ paymentdomain.CheckoutProvider = (*Adapter)(nil)
	_ paymentdomain.EventVerifier    = (*Adapter)(nil)
)
