package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/round-seat-reservation/internal/service"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, service.DefaultPolicy(), cfg.Policy())
	require.Equal(t, time.Minute, cfg.SweepInterval)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.False(t, cfg.RoomCache.Enabled)
	require.Equal(t, 5*time.Minute, cfg.RoomCache.TTL)
	require.Equal(t, 60, cfg.RateLimit.Capacity)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("ROUND_PAYMENT_DEADLINE", "2h")
	t.Setenv("ROUND_TIMEOUT_MANNER_PENALTY", "10")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, 2*time.Hour, cfg.Policy().PaymentDeadline)
	require.Equal(t, int64(10), cfg.Policy().TimeoutMannerPenalty)
	require.Equal(t, "cache:6380", cfg.Redis.Addr())
	require.Equal(t, 10*time.Second, cfg.RateLimit.TTL)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("ROUND_HOLD_TTL", "0s")

	_, err := Load()
	require.Error(t, err)
	require.ErrorContains(t, err, "JWT_SECRET")
	require.ErrorContains(t, err, "STORE_DRIVER")
	require.ErrorContains(t, err, "hold ttl")
}

func TestLoadRequiresDatabaseForMySQL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("DB_USER", "")

	_, err := Load()
	require.ErrorContains(t, err, "DB_USER")
}

func TestRoomCacheOnlyForDurableStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ROOM_CACHE_ENABLED", "true")

	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.RoomCache.Enabled)

	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("DB_USER", "round")
	t.Setenv("DB_NAME", "rounds")
	cfg, err = Load()
	require.NoError(t, err)
	require.True(t, cfg.RoomCache.Enabled)
}
