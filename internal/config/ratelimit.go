package config

import (
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig configures the token bucket placed in front of the
// protected API groups.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"rate_limit_enabled"`
	Capacity       int           `mapstructure:"rate_limit_capacity"`
	RefillTokens   int           `mapstructure:"rate_limit_refill_tokens"`
	RefillInterval time.Duration `mapstructure:"rate_limit_refill_interval"`
	TTL            time.Duration `mapstructure:"rate_limit_ttl"`
	KeyStrategy    string        `mapstructure:"rate_limit_key_strategy"`
	Prefix         string        `mapstructure:"rate_limit_prefix"`
	Debug          bool          `mapstructure:"rate_limit_debug"`
}

func rateLimitDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit_enabled", true)
	v.SetDefault("rate_limit_capacity", 60)
	v.SetDefault("rate_limit_refill_tokens", 1)
	v.SetDefault("rate_limit_refill_interval", "1s")
	v.SetDefault("rate_limit_ttl", "10m")
	v.SetDefault("rate_limit_key_strategy", "ip_user_route")
	v.SetDefault("rate_limit_prefix", "rl")
	v.SetDefault("rate_limit_debug", false)
}

// normalize clamps values the bucket cannot work with.
func (c *RateLimitConfig) normalize() {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// keys must outlive a full refill of the bucket
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
}
