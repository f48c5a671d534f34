// Package ratelimit gates outbound requests to the records endpoint with a
// token bucket so concurrent page fetches cannot flood the listing service.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request gating.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "records_rate_limit_waits_total",
		Help: "Total number of requests that had to wait for a rate limit token",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "records_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// throttleLogThreshold is the wait above which a throttled request is logged.
const throttleLogThreshold = 100 * time.Millisecond

// Config holds limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables limiting.
	RequestsPerSecond float64

	// Burst is the number of requests allowed at once (default: 1).
	Burst int
}

// DefaultConfig returns a limiter configuration suited to a small listing service.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// Limiter gates requests. A nil *Limiter allows everything.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a limiter. It returns nil when limiting is disabled.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			// The token would only arrive after the deadline.
			return fmt.Errorf("rate limit wait: %w: %v", context.DeadlineExceeded, err)
		}
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	if waited > time.Millisecond {
		rateLimitWaitsTotal.Inc()
		rateLimitWaitSeconds.Observe(waited.Seconds())
	}
	if waited > throttleLogThreshold {
		l.logger.Debug().
			Dur("waited", waited).
			Msg("Request throttled by rate limiter")
	}

	return nil
}

// Allow reports whether a request may proceed now without waiting.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
