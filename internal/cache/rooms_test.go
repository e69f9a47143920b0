package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/round-seat-reservation/internal/config"
	"github.com/iliyamo/round-seat-reservation/internal/model"
	"github.com/iliyamo/round-seat-reservation/internal/rooms"
)

func newRoomViews(t *testing.T) (*RoomViews, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRoomViews(config.RoomCacheConfig{Enabled: true, TTL: time.Minute, Prefix: "rooms"}, rdb)
	require.NotNil(t, c)
	return c, mr
}

func TestRoomViewsRoundTripPerVersion(t *testing.T) {
	c, mr := newRoomViews(t)
	ctx := context.Background()
	joined := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	views := rooms.Assign([]model.Participant{
		{ID: 1, EventID: 7, UserID: 10, JoinedAt: joined, PaymentStatus: model.PaymentPending},
		{ID: 2, EventID: 7, UserID: 11, JoinedAt: joined, PaymentStatus: model.PaymentPaid},
	}, 6)

	_, ok := c.Get(ctx, 7, 3)
	require.False(t, ok)

	c.Put(ctx, 7, 3, views)
	require.True(t, mr.Exists("rooms:7:3"))
	require.Equal(t, time.Minute, mr.TTL("rooms:7:3"))

	got, ok := c.Get(ctx, 7, 3)
	require.True(t, ok)
	require.Equal(t, views, got)

	_, ok = c.Get(ctx, 7, 4)
	require.False(t, ok)
}

func TestRoomViewsExpire(t *testing.T) {
	c, mr := newRoomViews(t)
	ctx := context.Background()
	c.Put(ctx, 1, 1, rooms.Assign(nil, 4))
	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, 1, 1)
	require.False(t, ok)
}

func TestNewRoomViewsDisabled(t *testing.T) {
	require.Nil(t, NewRoomViews(config.RoomCacheConfig{Enabled: false}, redis.NewClient(&redis.Options{})))
	require.Nil(t, NewRoomViews(config.RoomCacheConfig{Enabled: true}, nil))
}
