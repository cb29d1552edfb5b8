package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(secret string, now time.Time) *Adapter {
	adapter := New(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: secret,
		Timeout:       time.Second,
		Tolerance:     5 * time.Minute,
	})
	adapter.now = func() time.Time { return now }
	return adapter
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	now := time.Unix(1760000000, 0)
	adapter := newTestAdapter(secret, now)

	require.NoError(t, adapter.Verify(payload, SignatureHeader(secret, payload, now)))

	err := adapter.Verify(payload, SignatureHeader("wrong", payload, now))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	tampered := []byte(`{"id":"evt_124","type":"checkout.session.completed","data":{"object":{}}}`)
	err = adapter.Verify(tampered, SignatureHeader(secret, payload, now))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	assert.ErrorIs(t, adapter.Verify(payload, ""), paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, adapter.Verify(payload, "garbage"), paymentdomain.ErrInvalidSignature)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123"}`)
	now := time.Unix(1760000000, 0)
	adapter := newTestAdapter(secret, now)

	stale := SignatureHeader(secret, payload, now.Add(-10*time.Minute))
	assert.ErrorIs(t, adapter.Verify(payload, stale), paymentdomain.ErrInvalidSignature)

	future := SignatureHeader(secret, payload, now.Add(10*time.Minute))
	assert.ErrorIs(t, adapter.Verify(payload, future), paymentdomain.ErrInvalidSignature)

	recent := SignatureHeader(secret, payload, now.Add(-time.Minute))
	assert.NoError(t, adapter.Verify(payload, recent))
}

func TestVerifyAcceptsAnyMatchingSignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123"}`)
	now := time.Unix(1760000000, 0)
	adapter := newTestAdapter(secret, now)

	valid := SignatureHeader(secret, payload, now)
	header := valid + ",v1=deadbeef"
	assert.NoError(t, adapter.Verify(payload, header))
}

func TestParseCheckoutCompleted(t *testing.T) {
	adapter := newTestAdapter("whsec_test", time.Now())
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_1",
				"payment_status": "paid",
				"amount_total":   1000,
				"currency":       "USD",
				"metadata": map[string]any{
					"credits": "1000",
					"userId":  "user_123",
				},
			},
		},
	})
	require.NoError(t, err)

	event, err := adapter.Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", event.TransactionID)
	assert.Equal(t, "paid", event.PaymentStatus)
	assert.Equal(t, int64(1000), event.AmountTotal)
	assert.Equal(t, "usd", event.Currency)
	assert.Equal(t, map[string]string{"credits": "1000", "userId": "user_123"}, event.Metadata)
}

func TestParseIgnoresOtherEvents(t *testing.T) {
	adapter := newTestAdapter("whsec_test", time.Now())

	_, err := adapter.Parse([]byte(`{"id":"evt_2","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	_, err = adapter.Parse([]byte(`{"type":"customer.created","data":{"object":{"id":"cus_1"}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)

	_, err = adapter.Parse([]byte(`not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Parse([]byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Parse([]byte(`{"id":"evt_3","type":"checkout.session.completed","data":{"object":{}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func TestCreateCheckoutSession(t *testing.T) {
	forms := make(chan map[string][]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		select {
		case forms <- r.PostForm:
		default:
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","metadata":{"credits":"1000","userId":"user_123"}}`))
	}))
	defer srv.Close()

	adapter := New(Config{SecretKey: "sk_test_123", APIURL: srv.URL, Timeout: 2 * time.Second})
	session, err := adapter.CreateCheckoutSession(context.Background(), paymentdomain.PurchaseRequest{
		UserID:         "user_123",
		Credits:        1000,
		UnitPriceCents: 1000,
		Currency:       paymentdomain.CurrencyUSD,
		SuccessURL:     "http://localhost:3000/dashboard/credits?success=true",
		CancelURL:      "http://localhost:3000/dashboard/credits?canceled=true",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL)

	form := <-forms
	get := func(key string) string {
		if values := form[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}
	assert.Equal(t, "payment", get("mode"))
	assert.Equal(t, "card", get("payment_method_types[0]"))
	assert.Equal(t, "1000", get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", get("line_items[0][price_data][currency]"))
	assert.Equal(t, "1000 API Credits", get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "Purchase of 1000 API credits for making API requests", get("line_items[0][price_data][product_data][description]"))
	assert.Equal(t, "1", get("line_items[0][quantity]"))
	assert.Equal(t, "1000", get("metadata[credits]"))
	assert.Equal(t, "user_123", get("metadata[userId]"))
	assert.Equal(t, "http://localhost:3000/dashboard/credits?success=true", get("success_url"))
}

func TestCreateCheckoutSessionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	adapter := New(Config{SecretKey: "sk_test_123", APIURL: srv.URL, Timeout: 2 * time.Second})
	_, err := adapter.CreateCheckoutSession(context.Background(), paymentdomain.PurchaseRequest{
		UserID: "user_123", Credits: 10, UnitPriceCents: 100, Currency: "usd",
	})
	assert.Error(t, err)
}
