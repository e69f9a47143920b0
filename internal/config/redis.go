package config

// Redis backs the distributed rate limiter, the room-view cache and the
// asynq sweep queue.  If the server cannot be reached at startup the HTTP
// server degrades gracefully: caching is disabled and rate limiting
// falls back to per-process limiters.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// RedisConfig is read from:
//
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand, used when host/port are not both set
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS
type RedisConfig struct {
	Host     string `mapstructure:"redis_host"`
	Port     string `mapstructure:"redis_port"`
	Address  string `mapstructure:"redis_addr"`
	Password string `mapstructure:"redis_password"`
	DB       int    `mapstructure:"redis_db"`
	TLS      bool   `mapstructure:"redis_tls"`
}

func redisDefaults(v *viper.Viper) {
	v.SetDefault("redis_host", "")
	v.SetDefault("redis_port", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_tls", false)
}

// Addr resolves the server address.
func (c RedisConfig) Addr() string {
	if c.Host != "" && c.Port != "" {
		return c.Host + ":" + c.Port
	}
	if c.Address == "" {
		return "localhost:6379"
	}
	return c.Address
}

func (c RedisConfig) tlsConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: true}
}

// NewRedisClient connects to Redis and pings it with a short timeout.
// The returned client is nil if the server is unreachable.
func NewRedisClient(c RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:      c.Addr(),
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.tlsConfig(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

// AsynqRedis returns the connection options used by the sweep scheduler
// and worker.
func (c RedisConfig) AsynqRedis() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      c.Addr(),
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.tlsConfig(),
	}
}
