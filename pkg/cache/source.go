package cache

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/rs/zerolog"
)

// DefaultTTL is used when Config.TTL is unset.
const DefaultTTL = 30 * time.Second

// Upstream lists records; it has the same shape as pagination.Source.
type Upstream interface {
	ListRecords(ctx context.Context, q records.Query) ([]records.Record, error)
}

// Config holds caching source configuration.
type Config struct {
	// Endpoint namespaces keys, usually the upstream base URL.
	Endpoint string

	// TTL is how long a fetched page is served from cache.
	TTL time.Duration
}

// Source is a read-through cache in front of an Upstream.
type Source struct {
	next   Upstream
	store  Store
	config Config
	logger zerolog.Logger
}

// NewSource wraps next with store.
func NewSource(next Upstream, store Store, cfg Config, logger zerolog.Logger) *Source {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Source{
		next:   next,
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// ListRecords serves q from cache or fetches and stores it.
// Store failures are logged and bypassed; upstream errors are returned
// unchanged and nothing is cached for them.
func (s *Source) ListRecords(ctx context.Context, q records.Query) ([]records.Record, error) {
	key := KeyFor(s.config.Endpoint, q)

	entry, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		s.logger.Debug().
			Str("key", key.String()).
			Dur("ttl", entry.TTL()).
			Msg("Cache hit")
		if entry.Records == nil {
			return []records.Record{}, nil
		}
		return entry.Records, nil
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
	}

	recs, err := s.next.ListRecords(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, key, NewEntry(recs, s.config.TTL)); err != nil {
		s.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache page")
	} else {
		s.logger.Debug().
			Str("key", key.String()).
			Dur("ttl", s.config.TTL).
			Msg("Cached page")
	}

	return recs, nil
}

// Invalidate drops the cached page for q.
func (s *Source) Invalidate(ctx context.Context, q records.Query) error {
	return s.store.Delete(ctx, KeyFor(s.config.Endpoint, q))
}
