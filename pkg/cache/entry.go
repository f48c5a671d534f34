package cache

import (
	"time"

	"github.com/Sternrassler/managed-records/pkg/records"
)

// CacheEntry is one cached page of records.
type CacheEntry struct {
	// Records is the page as returned by the endpoint
	Records []records.Record `json:"records"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this page
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry for recs that expires after ttl.
func NewEntry(recs []records.Record, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Records:  copyRecords(recs),
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// clone returns a copy whose Records slice does not alias e.
func (e *CacheEntry) clone() *CacheEntry {
	c := *e
	c.Records = copyRecords(e.Records)
	return &c
}

// copyRecords never returns nil so an empty page round-trips as [].
func copyRecords(recs []records.Record) []records.Record {
	out := make([]records.Record, len(recs))
	copy(out, recs)
	return out
}
