// Package cache stores derived room views in Redis.  Views are a pure
// function of an event's roster, so the key includes the roster version
// and an entry never needs explicit invalidation: a roster change bumps
// the version and readers simply miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/round-seat-reservation/internal/config"
	"github.com/iliyamo/round-seat-reservation/internal/rooms"
)

// RoomViews implements service.RoomCache.
type RoomViews struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRoomViews returns nil when caching is disabled or Redis is
// unavailable.  Callers must then pass a nil interface, not the nil
// pointer, to service.New.
func NewRoomViews(cfg config.RoomCacheConfig, rdb *redis.Client) *RoomViews {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute // sane default
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "rooms"
	}
	return &RoomViews{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RoomViews) key(eventID, version uint64) string {
	return fmt.Sprintf("%s:%d:%d", c.prefix, eventID, version)
}

// Get returns the cached views for one roster version.  Errors are
// treated as misses.
func (c *RoomViews) Get(ctx context.Context, eventID, version uint64) ([]rooms.RoomView, bool) {
	bs, err := c.rdb.Get(ctx, c.key(eventID, version)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("module", "cache.rooms").Uint64("event_id", eventID).Msg("room cache read failed")
		}
		return nil, false
	}
	var views []rooms.RoomView
	if err := json.Unmarshal(bs, &views); err != nil {
		return nil, false
	}
	return views, true
}

// Put stores views under the roster version.
func (c *RoomViews) Put(ctx context.Context, eventID, version uint64, views []rooms.RoomView) {
	bs, err := json.Marshal(views)
	if err != nil {
		return
	}
	if err := c.rdb.SetEx(ctx, c.key(eventID, version), bs, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("module", "cache.rooms").Uint64("event_id", eventID).Msg("room cache write failed")
	}
}
