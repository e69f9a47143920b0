package config

import (
	"time"

	"github.com/spf13/viper"
)

// RoomCacheConfig defines settings for the derived room-view cache.
// When Enabled is false or no Redis client is configured, room views
// are recomputed on every read.  Entries are keyed by roster version, so
// TTL only bounds memory; it never serves a stale roster.  Load turns
// the cache off for the memory store, whose IDs do not outlive it.
type RoomCacheConfig struct {
	Enabled bool          `mapstructure:"room_cache_enabled"`
	TTL     time.Duration `mapstructure:"room_cache_ttl"`
	Prefix  string        `mapstructure:"room_cache_prefix"`
}

func roomCacheDefaults(v *viper.Viper) {
	v.SetDefault("room_cache_enabled", true)
	v.SetDefault("room_cache_ttl", "5m")
	v.SetDefault("room_cache_prefix", "rooms")
}
