package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists cache entries.
type Store interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)
	Set(ctx context.Context, key CacheKey, entry *CacheEntry) error
	Delete(ctx context.Context, key CacheKey) error
}

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (s *RedisStore) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.WithLabelValues(layerRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = s.Delete(ctx, key)
		CacheMisses.WithLabelValues(layerRedis).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layerRedis).Inc()
	return &entry, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// The entry will be automatically removed from Redis when it expires.
func (s *RedisStore) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		// Already expired, don't cache
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cache entry.
func (s *RedisStore) Delete(ctx context.Context, key CacheKey) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MemoryStore is a size-bounded in-process LRU Store.
type MemoryStore struct {
	entries *lru.Cache[string, *CacheEntry]
}

// NewMemoryStore creates a memory store holding at most size pages.
func NewMemoryStore(size int) (*MemoryStore, error) {
	entries, err := lru.New[string, *CacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryStore{entries: entries}, nil
}

// Get retrieves a copy of the entry for key.
func (s *MemoryStore) Get(_ context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	entry, ok := s.entries.Get(cacheKey)
	if !ok {
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}
	if entry.IsExpired() {
		s.entries.Remove(cacheKey)
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layerMemory).Inc()
	return entry.clone(), nil
}

// Set stores a copy of entry. Expired entries are ignored.
func (s *MemoryStore) Set(_ context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}
	s.entries.Add(key.String(), entry.clone())
	return nil
}

// Delete removes a cache entry.
func (s *MemoryStore) Delete(_ context.Context, key CacheKey) error {
	s.entries.Remove(key.String())
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

// TieredStore checks a fast store before a shared one and copies shared
// hits into the fast store.
type TieredStore struct {
	near Store
	far  Store
}

// NewTieredStore layers near (usually memory) in front of far (usually Redis).
func NewTieredStore(near, far Store) *TieredStore {
	return &TieredStore{near: near, far: far}
}

// Get returns the near entry if present, otherwise the far entry.
func (s *TieredStore) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	entry, err := s.near.Get(ctx, key)
	if err == nil {
		return entry, nil
	}

	entry, err = s.far.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	// Best effort; the far hit is still valid.
	_ = s.near.Set(ctx, key, entry)
	return entry, nil
}

// Set writes to both stores. The far error wins when both fail.
func (s *TieredStore) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	nearErr := s.near.Set(ctx, key, entry)
	if err := s.far.Set(ctx, key, entry); err != nil {
		return err
	}
	return nearErr
}

// Delete removes the entry from both stores.
func (s *TieredStore) Delete(ctx context.Context, key CacheKey) error {
	return errors.Join(s.near.Delete(ctx, key), s.far.Delete(ctx, key))
}
