package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/apicredits/internal/observability/context"
	"github.com/smallbiznis/apicredits/internal/usercontext"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = usercontext.WithUserID(ctx, "user_123")

	WithContext(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" {
		t.Fatalf("expected request_id req-1, got %v", fields["request_id"])
	}
	if fields["user_id"] != "user_123" {
		t.Fatalf("expected user_id user_123, got %v", fields["user_id"])
	}
}

func TestGinMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/api/credits", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"credits": 1})
	})

	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("expected request id to be echoed")
	}
	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 http_request entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/api/credits" {
		t.Fatalf("unexpected route %v", fields["route"])
	}
	if fields["status"] != int64(http.StatusOK) {
		t.Fatalf("unexpected status %v", fields["status"])
	}
}

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT * FROM credit_balances", want: "SELECT"},
		{sql: "DELETE FROM api_keys", want: "DELETE"},
		{sql: "  insert into credit_grants values (1)", want: "INSERT"},
		{sql: "", want: "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := operationFromSQL(tc.sql); got != tc.want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}
