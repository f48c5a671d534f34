// Package metrics exposes the Prometheus registry used by the records
// packages. All metrics are defined in their respective packages (client,
// cache, ratelimit, pagination) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves every metric registered with the default Prometheus
// registerer, which is where promauto places the records metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Retrieve Metrics (pkg/pagination):
//   - records_retrieve_duration_seconds (Histogram): Time to assemble one page result
//   - records_retrieve_errors_total{op} (Counter): Failed retrievals by step
//   - records_page_fetch_failures_total{op} (Counter): Fetches absorbed as empty pages (fetch, probe)
//   - records_next_page_probes_total{result} (Counter): Probe outcomes ("true", "false")
//
// Request Metrics (pkg/client):
//   - records_requests_total{status} (Counter): Upstream requests by HTTP status or failure kind
//   - records_request_duration_seconds (Histogram): Upstream request duration
//   - records_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//   - records_circuit_breaker_state (Gauge): 0 closed, 1 half-open, 2 open
//
// Retry Metrics (pkg/client):
//   - records_retries_total{error_class} (Counter): Retry attempts by error class
//   - records_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - records_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - records_rate_limit_waits_total (Counter): Requests that had to wait for a token
//   - records_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//
// Cache Metrics (pkg/cache):
//   - records_cache_hits_total{layer} (Counter): Cache hits by layer ("memory", "redis")
//   - records_cache_misses_total{layer} (Counter): Cache misses by layer
//   - records_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(records_cache_hits_total[5m])) /
//   (sum(rate(records_cache_hits_total[5m])) + sum(rate(records_cache_misses_total[5m])))
//
//   # Pages served with a swallowed upstream failure
//   rate(records_page_fetch_failures_total{op="fetch"}[5m])
//
//   # P95 Retrieve Latency
//   histogram_quantile(0.95, rate(records_retrieve_duration_seconds_bucket[5m]))
