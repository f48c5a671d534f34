package cache

import (
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/managed-records/pkg/records"
)

// keyPrefix namespaces every cache key.
const keyPrefix = "records"

// CacheKey identifies one cached page.
type CacheKey struct {
	// Endpoint is the records endpoint the page came from
	Endpoint string

	// QueryParams are the offset, limit and color[] parameters
	QueryParams url.Values
}

// KeyFor builds the key for q against endpoint.
func KeyFor(endpoint string, q records.Query) CacheKey {
	return CacheKey{
		Endpoint:    endpoint,
		QueryParams: q.Values(),
	}
}

// String generates a deterministic cache key string.
// Format: records:endpoint:param1=a,b:param2=c
//
// Keys and values are sorted, so color order does not matter, and every
// value of a repeated parameter is included.
//
// Example:
//
//	records:http://localhost:3000/records:color[]=blue,red:limit=10:offset=20
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	endpoint := strings.TrimRight(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, key+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, ":")
}
