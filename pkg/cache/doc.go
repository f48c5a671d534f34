// Package cache provides an optional page cache for the records endpoint.
//
// Caching is never built into the retriever. Instead Source decorates any
// pagination.Source (typically *client.Client) and serves repeated
// offset/limit/color windows from a Store:
//
// - MemoryStore: size-bounded in-process LRU
// - RedisStore: shared across processes, expiry enforced by Redis TTL
// - TieredStore: memory in front of Redis, Redis hits are copied to memory
//
// Only successful fetches are cached. A failed fetch passes straight through
// so the fail-soft empty page produced upstream is never stored.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewRedisStore(redisClient)
//
//	cached := cache.NewSource(recordsClient, store, cache.Config{
//		Endpoint: recordsClient.BaseURL(),
//		TTL:      30 * time.Second,
//	}, logger)
//
//	retriever := pagination.NewRetriever(cached, logger)
//
// # Staleness
//
// Cached pages can lag behind the endpoint by up to TTL. Keep TTL short
// when records change often, or leave caching off.
//
// # Metrics
//
//   - records_cache_hits_total{layer} - Cache hits by layer
//   - records_cache_misses_total{layer} - Cache misses by layer
//   - records_cache_errors_total{operation} - Store operation errors
package cache
