package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/apicredits/internal/observability/logger"
	"github.com/smallbiznis/apicredits/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitReasonCheckoutRate     = "checkout-rate"
	rateLimitReasonCheckoutInFlight = "checkout-in-flight"
	rateLimitReasonMeteredRate      = "metered-rate"
)

// CheckoutRateLimit applies the per-user token bucket and allows a single
// in-flight checkout per user. Without Redis it is a no-op.
func (s *Server) CheckoutRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID := userIDFromRequest(c)

		res, err := s.limiter.AllowCheckout(ctx, userID)
		if err != nil {
			logger.FromContext(ctx).Warn("checkout rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyRateLimit(c, rateLimitReasonCheckoutRate, res.RetryAfter)
			return
		}

		lease, acquired, err := s.limiter.TryLockCheckout(ctx, userID)
		if err != nil {
			logger.FromContext(ctx).Warn("checkout concurrency lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !acquired {
			denyRateLimit(c, rateLimitReasonCheckoutInFlight, time.Second)
			return
		}
		defer func() {
			if err := s.limiter.ReleaseCheckout(ctx, lease); err != nil {
				logger.FromContext(ctx).Warn("checkout concurrency unlock failed", zap.Error(err))
			}
		}()

		c.Next()
	}
}

// MeteredRateLimit throttles metered calls per API key.
func (s *Server) MeteredRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.limiter.AllowMetered(ctx, c.GetString(contextAPIKeyIDKey))
		if err != nil {
			logger.FromContext(ctx).Warn("metered rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyRateLimit(c, rateLimitReasonMeteredRate, res.RetryAfter)
			return
		}

		setRateLimitHeaders(c, res)
		c.Next()
	}
}

func denyRateLimit(c *gin.Context, reason string, retryAfter time.Duration) {
	logger.FromContext(c.Request.Context()).Warn("rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", normalizeRateLimitEndpoint(c)),
	)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func setRateLimitHeaders(c *gin.Context, res *ratelimit.RateLimitResult) {
	if res == nil || res.Limit <= 0 {
		return
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
}

// retryAfterSeconds rounds up and never advertises less than one second.
func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
