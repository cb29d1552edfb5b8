package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPackageCatalogDefaultsWhenMissing(t *testing.T) {
	holder, err := LoadPackageCatalog(t.TempDir())
	require.NoError(t, err)

	catalog := holder.Get()
	require.Len(t, catalog.Packages, 4)
	assert.Equal(t, "basic", catalog.Packages[0].ID)
	assert.Equal(t, int64(1000), catalog.Packages[0].Credits)
	assert.True(t, catalog.Packages[1].Popular)
}

func TestLoadPackageCatalogFromFile(t *testing.T) {
	dir := t.TempDir()
	body := `packages:
  - name: Starter Pack
    credits: 500
    price: 5
  - id: bulk
    name: Bulk
    credits: 50000
    price: 300
    popular: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "packages.yml"), []byte(body), 0o600))

	holder, err := LoadPackageCatalog(dir)
	require.NoError(t, err)

	catalog := holder.Get()
	require.Len(t, catalog.Packages, 2)
	assert.Equal(t, "starter-pack", catalog.Packages[0].ID)
	assert.Equal(t, "bulk", catalog.Packages[1].ID)
	assert.Equal(t, 300.0, catalog.Packages[1].Price)
}

func TestLoadPackageCatalogRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	body := `packages:
  - id: dup
    name: One
    credits: 10
    price: 1
  - id: dup
    name: Two
    credits: 20
    price: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "packages.yml"), []byte(body), 0o600))

	_, err := LoadPackageCatalog(dir)
	assert.Error(t, err)
}

func TestNilHolderReturnsDefaults(t *testing.T) {
	var holder *PackageCatalogHolder
	assert.Len(t, holder.Get().Packages, 4)
}

func TestNormalizeStoreBackend(t *testing.T) {
	cases := map[string]string{
		"":         StoreBackendMemory,
		"memory":   StoreBackendMemory,
		"postgres": StoreBackendSQL,
		"SQL":      StoreBackendSQL,
		"boltdb":   StoreBackendBolt,
		"redis":    StoreBackendRedis,
		"unknown":  StoreBackendMemory,
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeStoreBackend(in), in)
	}
}

func TestLoadReadsStripeSettings(t *testing.T) {
	t.Setenv("STRIPE_TIMEOUT", "3")
	t.Setenv("STRIPE_MAX_NETWORK_RETRIES", "1")
	t.Setenv("APP_BASE_URL", "https://dash.example.com/")
	t.Setenv("STORE_BACKEND", "bolt")

	cfg := Load()
	assert.Equal(t, "3s", cfg.Stripe.Timeout.String())
	assert.Equal(t, int64(1), cfg.Stripe.MaxNetworkRetries)
	assert.Equal(t, "https://dash.example.com", cfg.BaseURL)
	assert.Equal(t, StoreBackendBolt, cfg.StoreBackend)
}
