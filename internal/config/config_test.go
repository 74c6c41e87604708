package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "PORT", "JWT_SECRET", "COIN_VALUE_TTL", "MIN_WITHDRAWAL_COINS",
		"CORS_ALLOWED_ORIGINS", "WITHDRAWAL_RATE_PER_MINUTE", "RECONCILE_INTERVAL", "RIVER_MAX_WORKERS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 5*time.Minute, c.CoinValueTTL)
	assert.Equal(t, int64(1000), c.MinWithdrawalCoins)
	assert.Equal(t, 5, c.WithdrawalRatePerMinute)
	assert.Equal(t, time.Hour, c.ReconcileInterval)
	assert.Equal(t, 10, c.RiverMaxWorkers)
	assert.True(t, c.UsingDevSecret())
	assert.Equal(t, []string{"*"}, c.AllowedOrigins())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("COIN_VALUE_TTL", "30s")
	t.Setenv("MIN_WITHDRAWAL_COINS", "250")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, 30*time.Second, c.CoinValueTTL)
	assert.Equal(t, int64(250), c.MinWithdrawalCoins)
	assert.False(t, c.UsingDevSecret())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins())
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("MIN_WITHDRAWAL_COINS", "0")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("MIN_WITHDRAWAL_COINS", "ten")
	_, err = FromEnv()
	assert.Error(t, err)
}
