package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/apicredits/internal/config"
	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	calls    int
	last     paymentdomain.PurchaseRequest
	err      error
	hasTimer bool
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, req paymentdomain.PurchaseRequest) (*paymentdomain.CheckoutSession, error) {
	f.calls++
	f.last = req
	_, f.hasTimer = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &paymentdomain.CheckoutSession{
		ID:       "cs_test_1",
		URL:      "https://checkout.example.com/cs_test_1",
		Metadata: paymentdomain.Metadata(req.Credits, req.UserID),
	}, nil
}

func newService(provider paymentdomain.CheckoutProvider) *Service {
	cfg := config.Config{BaseURL: "http://localhost:3000/"}
	cfg.Stripe.Timeout = 10 * time.Second
	return NewService(Params{Cfg: cfg, Log: zap.NewNop(), Provider: provider})
}

func TestCreateBuildsPurchase(t *testing.T) {
	provider := &fakeProvider{}
	svc := newService(provider)

	session, err := svc.Create(context.Background(), Request{
		UserID:  "user_123",
		Amount:  decimal.RequireFromString("10"),
		Credits: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/cs_test_1", session.URL)

	assert.Equal(t, 1, provider.calls)
	assert.True(t, provider.hasTimer)
	assert.Equal(t, int64(1000), provider.last.UnitPriceCents)
	assert.Equal(t, int64(1000), provider.last.Credits)
	assert.Equal(t, "usd", provider.last.Currency)
	assert.Equal(t, "http://localhost:3000/dashboard/credits?success=true", provider.last.SuccessURL)
	assert.Equal(t, "http://localhost:3000/dashboard/credits?canceled=true", provider.last.CancelURL)

	credits, userID, err := paymentdomain.ParseMetadata(session.Metadata)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), credits)
	assert.Equal(t, "user_123", userID)
}

func TestCreateRejectsBeforeProvider(t *testing.T) {
	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"zero amount", Request{UserID: "u", Amount: decimal.Zero, Credits: 10}, paymentdomain.ErrInvalidAmount},
		{"negative amount", Request{UserID: "u", Amount: decimal.RequireFromString("-5"), Credits: 10}, paymentdomain.ErrInvalidAmount},
		{"sub cent amount", Request{UserID: "u", Amount: decimal.RequireFromString("10.005"), Credits: 10}, paymentdomain.ErrInvalidAmount},
		{"zero credits", Request{UserID: "u", Amount: decimal.RequireFromString("10"), Credits: 0}, paymentdomain.ErrInvalidCredits},
		{"negative credits", Request{UserID: "u", Amount: decimal.RequireFromString("10"), Credits: -1}, paymentdomain.ErrInvalidCredits},
		{"too many credits", Request{UserID: "u", Amount: decimal.RequireFromString("10"), Credits: paymentdomain.MaxCredits + 1}, paymentdomain.ErrInvalidCredits},
		{"blank user", Request{UserID: " ", Amount: decimal.RequireFromString("10"), Credits: 10}, paymentdomain.ErrInvalidUserID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{}
			_, err := newService(provider).Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, provider.calls)
		})
	}
}

func TestCreateMapsProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection reset")}
	_, err := newService(provider).Create(context.Background(), Request{
		UserID: "user_1", Amount: decimal.RequireFromString("45"), Credits: 5000,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrUpstreamPayment)
	assert.Equal(t, 1, provider.calls)
}

func TestToCents(t *testing.T) {
	cases := map[string]int64{
		"10":     1000,
		"0.01":   1,
		"45.5":   4550,
		"160.00": 16000,
		"19.99":  1999,
	}
	for in, want := range cases {
		got, err := ToCents(decimal.RequireFromString(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"0", "-1", "0.001", "1000000"} {
		_, err := ToCents(decimal.RequireFromString(in))
		assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount, in)
	}
}
