// Package client provides the HTTP transport for the records listing
// endpoint with rate limiting, retries and a circuit breaker.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/managed-records/pkg/logging"
	"github.com/Sternrassler/managed-records/pkg/ratelimit"
	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Prometheus metrics for records client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_requests_total",
		Help: "Total records endpoint requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "records_request_duration_seconds",
		Help:    "Records endpoint request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_errors_total",
		Help: "Total records endpoint errors by class",
	}, []string{"class"})

	circuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "records_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
)

// maxErrorBody bounds how much of a failed response body ends up in errors.
const maxErrorBody = 512

// Client is the records endpoint client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	limiter    *ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker
	retry      retrier
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the records endpoint, e.g. "http://localhost:3000/records".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP request (default: 10s).
	Timeout time.Duration

	// RateLimit gates outbound requests. Zero RequestsPerSecond disables it.
	RateLimit ratelimit.Config

	// Retry overrides the per-class retry configuration when non-zero.
	// Set MaxAttempts to 1 to disable retries.
	Retry RetryConfig

	// BreakerThreshold is the number of consecutive failures that opens
	// the circuit. Zero disables the breaker.
	BreakerThreshold uint32

	// BreakerTimeout is how long the circuit stays open (default: 30s).
	BreakerTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:          baseURL,
		UserAgent:        userAgent,
		Timeout:          10 * time.Second,
		RateLimit:        ratelimit.DefaultConfig(),
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// New creates a new records client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	logger := logging.NewLogger("records-client")

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		limiter: ratelimit.New(cfg.RateLimit, logger),
		retry:   retrier{override: cfg.Retry, logger: logger},
		config:  cfg,
		logger:  logger,
	}

	if cfg.BreakerThreshold > 0 {
		c.breaker = newBreaker(cfg, logger)
	}

	return c, nil
}

func newBreaker(cfg Config, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "records",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			circuitBreakerState.Set(float64(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})
}

// ListRecords fetches one page of records for q.
// Any non-2xx status or undecodable body is returned as an error.
func (c *Client) ListRecords(ctx context.Context, q records.Query) ([]records.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var recs []records.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &RecordsError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response body",
			Err:        err,
		}
	}
	if recs == nil {
		recs = []records.Record{}
	}

	c.logger.Debug().
		Int("offset", q.Offset).
		Strs("colors", q.Colors).
		Int("count", len(recs)).
		Msg("Records fetched")

	return recs, nil
}

// URL returns the absolute request URL for q. Query parameters already
// present on the base URL are kept.
func (c *Client) URL(q records.Query) string {
	u := *c.baseURL
	values := u.Query()
	for key, vals := range q.Values() {
		values[key] = vals
	}
	u.RawQuery = values.Encode()
	return u.String()
}

// Do performs an HTTP request with circuit breaking and retries. Each
// attempt waits for a rate limit token.
// On success the caller owns the response body. Non-2xx responses are
// consumed and returned as *RecordsError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", req.URL.String()).
		Str("method", req.Method).
		Msg("Executing records request")

	var resp *http.Response
	attempt := func() error {
		// Every attempt, retries included, takes a token.
		if err := c.limiter.Wait(ctx); err != nil {
			requestsTotal.WithLabelValues("rate_limited").Inc()
			return err
		}
		var err error
		resp, err = c.roundTrip(req)
		return err
	}

	run := func() error { return c.retry.do(ctx, attempt) }
	if c.breaker != nil {
		run = func() error {
			_, err := c.breaker.Execute(func() (interface{}, error) {
				return nil, c.retry.do(ctx, attempt)
			})
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				requestsTotal.WithLabelValues("circuit_open").Inc()
				return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
			}
			return err
		}
	}

	if err := run(); err != nil {
		return nil, err
	}
	return resp, nil
}

// roundTrip executes one attempt. A non-2xx response is drained, closed
// and turned into a *RecordsError.
func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := classifyErr(err)
		if class != "" {
			errorsTotal.WithLabelValues(string(class)).Inc()
		}
		requestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	class := classifyStatus(resp.StatusCode)
	errorsTotal.WithLabelValues(string(class)).Inc()

	c.logger.Warn().
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Str("error_class", string(class)).
		Msg("Records request error")

	msg := resp.Status
	if len(body) > 0 {
		msg = fmt.Sprintf("%s: %s", resp.Status, body)
	}
	return nil, &RecordsError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Message:    msg,
	}
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
