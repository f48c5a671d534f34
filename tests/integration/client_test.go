//go:build integration

package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/managed-records/internal/testutil"
	"github.com/Sternrassler/managed-records/pkg/cache"
	"github.com/Sternrassler/managed-records/pkg/client"
	"github.com/Sternrassler/managed-records/pkg/logging"
	"github.com/Sternrassler/managed-records/pkg/pagination"
	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// newClient builds a client against mock with fast retries.
func newClient(t *testing.T, mock *testutil.MockRecords, attempts int) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(mock.URL(), "TestApp/1.0.0")
	cfg.RateLimit.RequestsPerSecond = 0
	cfg.Retry = client.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: 10 * time.Millisecond, // Speed up test
		MaxBackoff:     50 * time.Millisecond,
	}

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// newCachedRetriever wires client -> Redis cache -> retriever.
func newCachedRetriever(c *client.Client, redisClient *redis.Client, ttl time.Duration) (*pagination.Retriever, *cache.Source) {
	source := cache.NewSource(c, cache.NewRedisStore(redisClient), cache.Config{
		Endpoint: c.BaseURL(),
		TTL:      ttl,
	}, logging.NewLogger("cache"))
	return pagination.NewRetriever(source, logging.NewLogger("retriever")), source
}

// TestFullRetrieveFlow tests the complete flow: client -> cache -> retriever.
func TestFullRetrieveFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecords(testutil.GenerateRecords(25))
	defer mock.Close()

	retriever, _ := newCachedRetriever(newClient(t, mock, 1), redisClient, time.Minute)

	ctx := context.Background()
	result, err := retriever.Retrieve(ctx, records.PageRequest{Page: 2, Colors: []string{"red", "brown"}})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// red/brown ids: 1,2,6,7,11,12,16,17,21,22 fill page 1 exactly.
	if result.PreviousPage == nil || *result.PreviousPage != 1 {
		t.Errorf("PreviousPage = %v, want 1", result.PreviousPage)
	}
	if result.NextPage != nil {
		t.Errorf("NextPage = %v, want nil", *result.NextPage)
	}
	if len(result.IDs) != 0 {
		t.Errorf("IDs = %v, want none", result.IDs)
	}

	result, err = retriever.Retrieve(ctx, records.PageRequest{Page: 1, Colors: []string{"red", "brown"}})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if strings.Join(result.IDs, ",") != "1,2,6,7,11,12,16,17,21,22" {
		t.Errorf("IDs = %v", result.IDs)
	}
	// Closed: 2 brown, 6 red, 12 brown, 16 red, 22 brown.
	if result.ClosedPrimaryCount != 2 {
		t.Errorf("ClosedPrimaryCount = %d, want 2", result.ClosedPrimaryCount)
	}
	if mock.LastUserAgent() != "TestApp/1.0.0" {
		t.Errorf("User-Agent = %q", mock.LastUserAgent())
	}
}

// TestCacheHit tests that a repeated retrieval is served from Redis.
func TestCacheHit(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecords(testutil.GenerateRecords(15))
	defer mock.Close()

	retriever, _ := newCachedRetriever(newClient(t, mock, 1), redisClient, time.Minute)
	ctx := context.Background()

	first, err := retriever.Retrieve(ctx, records.PageRequest{Page: 1})
	if err != nil {
		t.Fatalf("First retrieve failed: %v", err)
	}
	if mock.RequestCount() != 2 {
		t.Fatalf("upstream requests = %d, want 2 (fetch + probe)", mock.RequestCount())
	}

	second, err := retriever.Retrieve(ctx, records.PageRequest{Page: 1})
	if err != nil {
		t.Fatalf("Second retrieve failed: %v", err)
	}
	if mock.RequestCount() != 2 {
		t.Errorf("upstream requests = %d, want 2 (second retrieve cached)", mock.RequestCount())
	}

	if strings.Join(first.IDs, ",") != strings.Join(second.IDs, ",") {
		t.Errorf("cached result differs: %v vs %v", first.IDs, second.IDs)
	}
}

// TestRetry5xxErrors tests that 5xx errors trigger retries and the
// retriever still answers with an empty page.
func TestRetry5xxErrors(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecords(testutil.GenerateRecords(15))
	defer mock.Close()
	mock.SetOffsetResponse(0, testutil.NewServerErrorResponse())

	retriever, _ := newCachedRetriever(newClient(t, mock, 3), redisClient, time.Minute)
	ctx := context.Background()

	result, err := retriever.Retrieve(ctx, records.PageRequest{Page: 1})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	if mock.OffsetCount(0) != 3 {
		t.Errorf("attempts at offset 0 = %d, want 3", mock.OffsetCount(0))
	}
	if len(result.IDs) != 0 {
		t.Errorf("IDs = %v, want empty page", result.IDs)
	}
	// The probe still succeeded.
	if result.NextPage == nil || *result.NextPage != 2 {
		t.Errorf("NextPage = %v, want 2", result.NextPage)
	}

	// The failure was not cached: once upstream recovers the page appears.
	mock.Reset()

	result, err = retriever.Retrieve(ctx, records.PageRequest{Page: 1})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(result.IDs) != 10 {
		t.Errorf("len(IDs) = %d, want 10 after recovery", len(result.IDs))
	}
}

// TestNoRetry4xxErrors tests that 4xx errors do NOT trigger retries.
func TestNoRetry4xxErrors(t *testing.T) {
	mock := testutil.NewMockRecords(testutil.GenerateRecords(15))
	defer mock.Close()
	mock.SetResponse(testutil.NewBadRequestResponse("bad color"))

	c := newClient(t, mock, 3)

	_, err := c.ListRecords(context.Background(), records.QueryFor(records.PageRequest{Page: 1}))
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	// Should only make 1 request (no retries)
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1 (no retries for 4xx)", mock.RequestCount())
	}
}

// TestCacheExpiration tests that expired cache entries are not used.
func TestCacheExpiration(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecords(testutil.GenerateRecords(5))
	defer mock.Close()

	retriever, source := newCachedRetriever(newClient(t, mock, 1), redisClient, time.Second)
	ctx := context.Background()

	if _, err := retriever.Retrieve(ctx, records.PageRequest{Page: 1}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	// Verify it's cached
	q := records.QueryFor(records.PageRequest{Page: 1})
	key := cache.KeyFor(mock.URL(), q)
	if n, err := redisClient.Exists(ctx, key.String()).Result(); err != nil || n != 1 {
		t.Fatalf("page not cached under %s (exists=%d, err=%v)", key, n, err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := retriever.Retrieve(ctx, records.PageRequest{Page: 1}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if mock.OffsetCount(0) != 2 {
		t.Errorf("offset 0 requests = %d, want 2 after expiry", mock.OffsetCount(0))
	}

	// Explicit invalidation forces a refetch too.
	if err := source.Invalidate(ctx, q); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := retriever.Retrieve(ctx, records.PageRequest{Page: 1}); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if mock.OffsetCount(0) != 3 {
		t.Errorf("offset 0 requests = %d, want 3 after invalidation", mock.OffsetCount(0))
	}
}
