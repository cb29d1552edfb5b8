package usercontext

import (
	"context"
	"testing"
)

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), " user_42 ")
	got, ok := UserIDFromContext(ctx)
	if !ok || got != "user_42" {
		t.Fatalf("expected user_42, got %q (ok=%v)", got, ok)
	}
}

func TestUserIDMissing(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Fatalf("expected no user id")
	}
	if _, ok := UserIDFromContext(WithUserID(context.Background(), "  ")); ok {
		t.Fatalf("expected blank user id to be ignored")
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("", "user_123"); got != "user_123" {
		t.Fatalf("expected default, got %q", got)
	}
	if got := Resolve(" alice ", "user_123"); got != "alice" {
		t.Fatalf("expected header value, got %q", got)
	}
}
