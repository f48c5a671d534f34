// Package config loads process configuration for the records binary and
// wires the client, cache and retriever from it.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/managed-records/pkg/cache"
	"github.com/Sternrassler/managed-records/pkg/client"
	"github.com/Sternrassler/managed-records/pkg/logging"
	"github.com/Sternrassler/managed-records/pkg/pagination"
	"github.com/Sternrassler/managed-records/pkg/ratelimit"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// envPrefix is prepended to every variable name, e.g. RECORDS_BASE_URL.
const envPrefix = "records"

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheTiered = "tiered"
)

// Config represents the application configuration structure
type Config struct {
	BaseURL   string        `envconfig:"BASE_URL" default:"http://localhost:3000/records"`
	UserAgent string        `envconfig:"USER_AGENT" default:"managed-records/0.1.0"`
	Timeout   time.Duration `envconfig:"TIMEOUT" default:"10s"`

	RateLimit float64 `envconfig:"RATE_LIMIT" default:"10"`
	RateBurst int     `envconfig:"RATE_BURST" default:"5"`

	// MaxAttempts and InitialBackoff override the per-class retry
	// defaults when either is set.
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF"`

	BreakerThreshold uint32        `envconfig:"BREAKER_THRESHOLD" default:"5"`
	BreakerTimeout   time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`

	Cache     string        `envconfig:"CACHE" default:"none"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	CacheSize int           `envconfig:"CACHE_SIZE" default:"1024"`
	RedisAddr string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int           `envconfig:"REDIS_DB" default:"0"`

	ListenAddr       string `envconfig:"LISTEN_ADDR" default:":8080"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty        bool   `envconfig:"LOG_PRETTY" default:"false"`
	RangeConcurrency int    `envconfig:"RANGE_CONCURRENCY" default:"4"`
	RangeMaxPages    int    `envconfig:"RANGE_MAX_PAGES" default:"100"`
}

// LoadFromEnv loads a new configuration structure using environment variables and an optional .env file
func LoadFromEnv() (*Config, error) {
	// Load a .env file if it exists; variables already set win
	_ = godotenv.Load()

	config := new(Config)
	if err := envconfig.Process(envPrefix, config); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return config, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is required"))
	}
	switch strings.ToLower(c.Cache) {
	case CacheNone, CacheMemory, CacheRedis, CacheTiered:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q (want none, memory, redis or tiered)", c.Cache))
	}
	if c.CacheSize <= 0 && c.usesMemory() {
		errs = append(errs, fmt.Errorf("cache size must be positive (got %d)", c.CacheSize))
	}
	if c.RangeConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("range concurrency must be positive (got %d)", c.RangeConcurrency))
	}
	if c.RangeMaxPages <= 0 {
		errs = append(errs, fmt.Errorf("range max pages must be positive (got %d)", c.RangeMaxPages))
	}
	return errors.Join(errs...)
}

func (c *Config) usesMemory() bool {
	b := strings.ToLower(c.Cache)
	return b == CacheMemory || b == CacheTiered
}

func (c *Config) usesRedis() bool {
	b := strings.ToLower(c.Cache)
	return b == CacheRedis || b == CacheTiered
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// Client returns the transport configuration.
func (c *Config) Client() client.Config {
	cfg := client.DefaultConfig(c.BaseURL, c.UserAgent)
	cfg.Timeout = c.Timeout
	cfg.RateLimit = ratelimit.Config{
		RequestsPerSecond: c.RateLimit,
		Burst:             c.RateBurst,
	}
	cfg.Retry = client.RetryConfig{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: c.InitialBackoff,
	}
	cfg.BreakerThreshold = c.BreakerThreshold
	cfg.BreakerTimeout = c.BreakerTimeout
	return cfg
}

// Batch returns the range retrieval configuration.
func (c *Config) Batch() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.MaxConcurrency = c.RangeConcurrency
	cfg.MaxPages = c.RangeMaxPages
	return cfg
}

// Runtime holds the wired components. Close releases them.
type Runtime struct {
	Client    *client.Client
	Source    pagination.Source
	Retriever *pagination.Retriever
	Batch     *pagination.BatchRetriever

	redis *redis.Client
}

// Build wires client, optional cache and retriever. Redis is pinged up
// front so a bad address fails at startup, not on the first request.
func (c *Config) Build(ctx context.Context, logger zerolog.Logger) (*Runtime, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	recordsClient, err := client.New(c.Client())
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	rt := &Runtime{Client: recordsClient}
	store, err := c.store(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Source = recordsClient
	if store != nil {
		rt.Source = cache.NewSource(recordsClient, store, cache.Config{
			Endpoint: recordsClient.BaseURL(),
			TTL:      c.CacheTTL,
		}, logging.Component(logger, "cache"))
	}

	rt.Retriever = pagination.NewRetriever(rt.Source, logging.Component(logger, "retriever"))
	rt.Batch = pagination.NewBatchRetriever(rt.Retriever, c.Batch())

	logger.Info().
		Str("base_url", recordsClient.BaseURL()).
		Str("cache", c.Cache).
		Msg("Records runtime ready")

	return rt, nil
}

func (c *Config) store(ctx context.Context, rt *Runtime) (cache.Store, error) {
	var near, far cache.Store

	if c.usesMemory() {
		mem, err := cache.NewMemoryStore(c.CacheSize)
		if err != nil {
			return nil, err
		}
		near = mem
	}

	if c.usesRedis() {
		rt.redis = redis.NewClient(&redis.Options{
			Addr: c.RedisAddr,
			DB:   c.RedisDB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", c.RedisAddr, err)
		}
		far = cache.NewRedisStore(rt.redis)
	}

	switch {
	case near != nil && far != nil:
		return cache.NewTieredStore(near, far), nil
	case near != nil:
		return near, nil
	case far != nil:
		return far, nil
	default:
		return nil, nil
	}
}

// Ready reports whether the shared cache, if any, is reachable.
func (r *Runtime) Ready(ctx context.Context) error {
	if r.redis == nil {
		return nil
	}
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the HTTP client and Redis connection.
func (r *Runtime) Close() error {
	var errs []error
	if r.Client != nil {
		errs = append(errs, r.Client.Close())
	}
	if r.redis != nil {
		errs = append(errs, r.redis.Close())
	}
	return errors.Join(errs...)
}
