package payment

import (
	"github.com/smallbiznis/apicredits/internal/config"
	"github.com/smallbiznis/apicredits/internal/payment/adapters/stripe"
	"github.com/smallbiznis/apicredits/internal/payment/checkout"
	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
	"github.com/smallbiznis/apicredits/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(newStripeAdapter),
	fx.Provide(
		func(a *stripe.Adapter) paymentdomain.CheckoutProvider { return a },
		func(a *stripe.Adapter) paymentdomain.EventVerifier { return a },
	),
	fx.Provide(checkout.NewService),
	fx.Provide(webhook.NewService),
)

func newStripeAdapter(cfg config.Config) *stripe.Adapter {
	return stripe.New(stripe.Config{
		SecretKey:         cfg.Stripe.SecretKey,
		WebhookSecret:     cfg.Stripe.WebhookSecret,
		APIURL:            cfg.Stripe.APIURL,
		Timeout:           cfg.Stripe.Timeout,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
		Tolerance:         cfg.Stripe.WebhookTolerance,
	})
}
