// Package config loads pairsync settings from defaults, an optional config
// file and PAIRSYNC_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/pairsync/codec"
	"github.com/layer-3/pairsync/core"
	"github.com/layer-3/pairsync/engine"
	"github.com/spf13/viper"
)

const envPrefix = "PAIRSYNC"

// Relay backends.
const (
	BackendMemory      = "memory"
	BackendRedisStream = "redisstream"
	BackendRedis       = "redis"
)

type Relay struct {
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`
	Ceiling  int    `mapstructure:"ceiling"`
	Overhead int    `mapstructure:"overhead"`
}

type Pairing struct {
	Scheme           string        `mapstructure:"scheme"`
	RotationInterval time.Duration `mapstructure:"rotation_interval"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	AckTimeout       time.Duration `mapstructure:"ack_timeout"`
	RequireAck       bool          `mapstructure:"require_ack"`
	ChunkSize        int           `mapstructure:"chunk_size"`
	Retention        time.Duration `mapstructure:"retention"`
}

type HTTP struct {
	Addr     string        `mapstructure:"addr"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// Config is the full settings tree.
type Config struct {
	Relay   Relay   `mapstructure:"relay"`
	Pairing Pairing `mapstructure:"pairing"`
	HTTP    HTTP    `mapstructure:"http"`
	Log     Log     `mapstructure:"log"`
}

// SetDefaults registers every key with its default so environment overrides
// resolve during Unmarshal.
func SetDefaults(v *viper.Viper) {
	defaults := engine.DefaultConfig()

	v.SetDefault("relay.backend", BackendMemory)
	v.SetDefault("relay.redis_url", "redis://localhost:6379/0")
	v.SetDefault("relay.ceiling", codec.DefaultCeiling)
	v.SetDefault("relay.overhead", codec.DefaultOverhead)

	v.SetDefault("pairing.scheme", core.DefaultScheme)
	v.SetDefault("pairing.rotation_interval", defaults.RotationInterval)
	v.SetDefault("pairing.idle_timeout", defaults.IdleTimeout)
	v.SetDefault("pairing.ack_timeout", defaults.AckTimeout)
	v.SetDefault("pairing.require_ack", defaults.RequireAck)
	v.SetDefault("pairing.chunk_size", 0)
	v.SetDefault("pairing.retention", 10*time.Minute)

	v.SetDefault("http.addr", ":9000")
	v.SetDefault("http.token_ttl", 15*time.Minute)

	v.SetDefault("log.level", "info")
}

// Load reads configuration. path may be empty.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	switch c.Relay.Backend {
	case BackendMemory, BackendRedisStream, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("relay.backend: unknown backend %q", c.Relay.Backend))
	}
	if _, err := c.budget().MaxChunkSize(); err != nil {
		errs = append(errs, fmt.Errorf("relay: %w", err))
	} else if _, err := c.budget().ChunkSize(c.Pairing.ChunkSize); err != nil {
		errs = append(errs, fmt.Errorf("pairing.chunk_size: %w", err))
	}
	if c.Pairing.ChunkSize < 0 {
		errs = append(errs, errors.New("pairing.chunk_size must not be negative"))
	}
	for key, d := range map[string]time.Duration{
		"pairing.rotation_interval": c.Pairing.RotationInterval,
		"pairing.idle_timeout":      c.Pairing.IdleTimeout,
		"pairing.ack_timeout":       c.Pairing.AckTimeout,
		"pairing.retention":         c.Pairing.Retention,
		"http.token_ttl":            c.HTTP.TokenTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if strings.ContainsAny(c.Pairing.Scheme, ":|@") || c.Pairing.Scheme == "" {
		errs = append(errs, fmt.Errorf("pairing.scheme %q is not a valid scheme", c.Pairing.Scheme))
	}

	return errors.Join(errs...)
}

// Engine derives the engine configuration.
func (c *Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.RotationInterval = c.Pairing.RotationInterval
	cfg.IdleTimeout = c.Pairing.IdleTimeout
	cfg.AckTimeout = c.Pairing.AckTimeout
	cfg.RequireAck = c.Pairing.RequireAck
	cfg.MaxChunkSize = c.Pairing.ChunkSize
	cfg.Budget = c.budget()
	return cfg
}

func (c *Config) budget() codec.Budget {
	return codec.Budget{Ceiling: c.Relay.Ceiling, Overhead: c.Relay.Overhead}
}
