package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/apicredits/internal/config"
	"github.com/smallbiznis/apicredits/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/apicredits/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestAppOptionsFormValidGraphs(t *testing.T) {
	for _, backend := range []string{
		config.StoreBackendMemory,
		config.StoreBackendSQL,
		config.StoreBackendBolt,
		config.StoreBackendRedis,
	} {
		cfg := config.Config{
			HTTPAddr:      ":0",
			DefaultUserID: "user_123",
			StoreBackend:  backend,
			BoltPath:      filepath.Join(t.TempDir(), "credits.db"),
			DBType:        "sqlite",
			DBName:        filepath.Join(t.TempDir(), "credits"),
		}
		assert.NoError(t, fx.ValidateApp(appOptions(cfg)...), backend)
	}
}

func TestSignedCompletionVerifies(t *testing.T) {
	adapter := stripe.New(stripe.Config{WebhookSecret: "whsec_cli", Tolerance: 5 * time.Minute})

	payload, header, err := signedCompletion("cs_test_cli", "user_123", 1000, "whsec_cli", time.Now())
	require.NoError(t, err)
	require.NoError(t, adapter.Verify(payload, header))

	event, err := adapter.Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_cli", event.TransactionID)

	credits, userID, err := paymentdomain.ParseMetadata(event.Metadata)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), credits)
	assert.Equal(t, "user_123", userID)
}

func TestSignedCompletionRejectsBadInput(t *testing.T) {
	_, _, err := signedCompletion("cs_1", " ", 10, "whsec", time.Now())
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidUserID)

	_, _, err = signedCompletion("cs_1", "user_123", 0, "whsec", time.Now())
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidCredits)

	_, _, err = signedCompletion("cs_1", "user_123", 10, "", time.Now())
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "apicredits "))
}
