package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/promo",
		"REDIS_URL":    "redis://localhost:6379",
		"PORT":         "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 30*time.Second, cfg.LedgerReservationTTL)
	require.Equal(t, "default", cfg.TaskQueue)
	require.Equal(t, 120, cfg.QuoteRateLimit)
}

func TestLoadRequiresDatabaseAndRedis(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
	})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/promo",
		"REDIS_URL":    "",
	})
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":           "postgres://localhost/promo",
		"REDIS_URL":              "redis://localhost:6379",
		"PORT":                   "9090",
		"LEDGER_RESERVATION_TTL": "45s",
		"QUOTE_RATE_LIMIT":       "10",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 45*time.Second, cfg.LedgerReservationTTL)
	require.Equal(t, 10, cfg.QuoteRateLimit)
}
