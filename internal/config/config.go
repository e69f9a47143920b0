// Package config loads application configuration from an optional .env
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/iliyamo/round-seat-reservation/internal/service"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable of the same name in upper case.
type Config struct {
	Env         string `mapstructure:"app_env"`     // application environment (dev/test/prod)
	Port        string `mapstructure:"app_port"`    // HTTP port to listen on
	StoreDriver string `mapstructure:"store_driver"` // mysql or memory

	DBUser string `mapstructure:"db_user"`
	DBPass string `mapstructure:"db_pass"` // empty allowed
	DBHost string `mapstructure:"db_host"`
	DBPort string `mapstructure:"db_port"`
	DBName string `mapstructure:"db_name"`

	JWTSecret string `mapstructure:"jwt_secret"` // HS256 key shared with the identity provider

	RabbitMQURL  string `mapstructure:"rabbitmq_url"`
	NotifyQueue  string `mapstructure:"notify_queue"`
	NotifyBuffer int    `mapstructure:"notify_buffer"` // notifications held in memory before dropping

	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	SweepConcurrency int           `mapstructure:"sweep_concurrency"`
	SweepBatch       int           `mapstructure:"sweep_batch"`

	PaymentDeadline      time.Duration `mapstructure:"round_payment_deadline"`
	HoldTTL              time.Duration `mapstructure:"round_hold_ttl"`
	TimeoutPointsPenalty int64         `mapstructure:"round_timeout_points_penalty"`
	TimeoutMannerPenalty int64         `mapstructure:"round_timeout_manner_penalty"`
	PreReservationReward int64         `mapstructure:"round_pre_reservation_reward"`

	Redis     RedisConfig     `mapstructure:",squash"`
	RateLimit RateLimitConfig `mapstructure:",squash"`
	RoomCache RoomCacheConfig `mapstructure:",squash"`
}

// Load reads .env (when present) and the environment into a Config.
// Missing required values and out-of-range numbers are returned as
// errors; callers decide whether to exit.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read .env: %w", err)
	}
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	cfg.RateLimit.normalize()
	// Memory IDs and roster versions restart with the process, so keys
	// in a shared Redis would name another process's rosters.
	if cfg.StoreDriver == StoreMemory {
		cfg.RoomCache.Enabled = false
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"app_env":      "dev",
		"app_port":     "8080",
		"store_driver": StoreMySQL,
		"db_user":      "",
		"db_pass":      "",
		"db_host":      "127.0.0.1",
		"db_port":      "3306",
		"db_name":      "rounds",
		"jwt_secret":   "",

		"rabbitmq_url":  "",
		"notify_queue":  "round_notifications",
		"notify_buffer": 1024,

		"sweep_interval":    "1m",
		"sweep_concurrency": 4,
		"sweep_batch":       500,

		"round_payment_deadline":       "3h",
		"round_hold_ttl":               "6h",
		"round_timeout_points_penalty": 20,
		"round_timeout_manner_penalty": 30,
		"round_pre_reservation_reward": 1,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	redisDefaults(v)
	rateLimitDefaults(v)
	roomCacheDefaults(v)
}

func (c Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("missing required env var: JWT_SECRET"))
	}
	switch c.StoreDriver {
	case StoreMySQL:
		for key, val := range map[string]string{"DB_USER": c.DBUser, "DB_HOST": c.DBHost, "DB_PORT": c.DBPort, "DB_NAME": c.DBName} {
			if val == "" {
				errs = append(errs, fmt.Errorf("missing required env var: %s", key))
			}
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMySQL, StoreMemory, c.StoreDriver))
	}
	if c.NotifyBuffer < 1 {
		errs = append(errs, errors.New("NOTIFY_BUFFER must be at least 1"))
	}
	if c.SweepInterval < time.Second {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be at least 1s"))
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Policy returns the round rules configured for the engine.
func (c Config) Policy() service.Policy {
	return service.Policy{
		PaymentDeadline:      c.PaymentDeadline,
		HoldTTL:              c.HoldTTL,
		TimeoutPointsPenalty: c.TimeoutPointsPenalty,
		TimeoutMannerPenalty: c.TimeoutMannerPenalty,
		PreReservationReward: c.PreReservationReward,
		SweepBatch:           c.SweepBatch,
		SweepConcurrency:     c.SweepConcurrency,
	}
}

// IsDev reports whether human-readable console logs are wanted.
func (c Config) IsDev() bool { return c.Env == "dev" || c.Env == "" }
