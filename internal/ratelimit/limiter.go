package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/apicredits/internal/config"
	"go.uber.org/fx"
)

const (
	keyCheckoutUser = "ratelimit:checkout:user:%s"
	keyMeteredKey   = "ratelimit:metered:key:%s"
	keyCheckoutLock = "lock:checkout:user:%s"
)

// Limiter guards checkout creation per user and metered calls per API key.
// A nil Limiter, or one built without Redis, allows everything.
type Limiter struct {
	bucket *TokenBucket
	locker *Locker

	checkoutRate  float64
	checkoutBurst int
	meteredRate   float64
	meteredBurst  int
	lockTTL       time.Duration
}

type Params struct {
	fx.In

	Cfg    config.Config
	Client *redis.Client `optional:"true"`
}

func NewLimiter(p Params) *Limiter {
	if p.Client == nil {
		return nil
	}
	limits := p.Cfg.RateLimit
	lockTTL := p.Cfg.Stripe.Timeout * 2
	if lockTTL <= 0 {
		lockTTL = 20 * time.Second
	}
	return &Limiter{
		bucket:        NewTokenBucket(p.Client),
		locker:        NewLocker(p.Client),
		checkoutRate:  limits.CheckoutRatePerSecond,
		checkoutBurst: limits.CheckoutBurst,
		meteredRate:   limits.MeteredRatePerSecond,
		meteredBurst:  limits.MeteredBurst,
		lockTTL:       lockTTL,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *Limiter) AllowCheckout(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() || l.checkoutRate <= 0 || l.checkoutBurst <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCheckoutUser, strings.TrimSpace(userID)), l.checkoutRate, l.checkoutBurst)
}

func (l *Limiter) AllowMetered(ctx context.Context, keyID string) (*RateLimitResult, error) {
	if !l.Enabled() || l.meteredRate <= 0 || l.meteredBurst <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyMeteredKey, strings.TrimSpace(keyID)), l.meteredRate, l.meteredBurst)
}

// TryLockCheckout keeps a user to one in-flight checkout creation.
func (l *Limiter) TryLockCheckout(ctx context.Context, userID string) (Lease, bool, error) {
	if !l.Enabled() {
		return Lease{}, true, nil
	}
	return l.locker.TryLock(ctx, fmt.Sprintf(keyCheckoutLock, strings.TrimSpace(userID)), l.lockTTL)
}

func (l *Limiter) ReleaseCheckout(ctx context.Context, lease Lease) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, lease)
}
