package usercontext

import (
	"context"
	"strings"
)

// HeaderUserID carries the caller identity. There is no authentication in
// front of the dashboard API, so the header is trusted as-is.
const HeaderUserID = "X-User-Id"

// UserContextKey is the request context key for the caller's user ID.
type UserContextKey struct{}

// WithUserID stores the user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserContextKey{}, strings.TrimSpace(userID))
}

// UserIDFromContext returns the user ID from context, if set.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(UserContextKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Resolve picks the header value when present and falls back to def.
func Resolve(header, def string) string {
	if value := strings.TrimSpace(header); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}
