// Package testutil provides testing utilities for the records client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/managed-records/pkg/records"
)

// MockResponse defines a canned response for the mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRecords is a configurable mock of the paginated records endpoint.
// By default it serves its dataset honoring offset, limit and color[].
type MockRecords struct {
	server *httptest.Server
	mu     sync.RWMutex

	dataset   []records.Record
	overrides map[int]MockResponse // keyed by offset
	fallback  *MockResponse

	requestCount  int
	offsetCounts  map[int]int
	lastQuery     url.Values
	lastUserAgent string
}

// NewMockRecords creates a mock server serving dataset.
func NewMockRecords(dataset []records.Record) *MockRecords {
	mock := &MockRecords{
		dataset:      dataset,
		overrides:    make(map[int]MockResponse),
		offsetCounts: make(map[int]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the records endpoint URL of the mock server.
func (m *MockRecords) URL() string {
	return m.server.URL + "/records"
}

// Close shuts down the mock server.
func (m *MockRecords) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and configured responses.
func (m *MockRecords) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.offsetCounts = make(map[int]int)
	m.lastQuery = nil
	m.overrides = make(map[int]MockResponse)
	m.fallback = nil
}

// SetDataset replaces the served records.
func (m *MockRecords) SetDataset(dataset []records.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset = dataset
}

// SetOffsetResponse serves resp for requests with the given offset.
func (m *MockRecords) SetOffsetResponse(offset int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[offset] = resp
}

// SetResponse serves resp for every request without an offset override.
func (m *MockRecords) SetResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &resp
}

// RequestCount returns the number of requests served.
func (m *MockRecords) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// OffsetCount returns how many requests asked for offset.
func (m *MockRecords) OffsetCount(offset int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offsetCounts[offset]
}

// LastQuery returns the query of the most recent request.
func (m *MockRecords) LastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// LastUserAgent returns the User-Agent of the most recent request.
func (m *MockRecords) LastUserAgent() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUserAgent
}

func (m *MockRecords) handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	offset, _ := strconv.Atoi(query.Get(records.ParamOffset))

	m.mu.Lock()
	m.requestCount++
	m.offsetCounts[offset]++
	m.lastQuery = query
	m.lastUserAgent = r.Header.Get("User-Agent")
	override, hasOverride := m.overrides[offset]
	fallback := m.fallback
	dataset := m.dataset
	m.mu.Unlock()

	if hasOverride {
		writeResponse(w, override)
		return
	}
	if fallback != nil {
		writeResponse(w, *fallback)
		return
	}

	limit, err := strconv.Atoi(query.Get(records.ParamLimit))
	if err != nil || limit <= 0 {
		writeResponse(w, NewBadRequestResponse("limit must be a positive integer"))
		return
	}

	page := FilterPage(dataset, offset, limit, query[records.ParamColor])

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(page)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// FilterPage applies the endpoint's color filter and offset/limit window.
func FilterPage(dataset []records.Record, offset, limit int, colors []string) []records.Record {
	filtered := dataset
	if len(colors) > 0 {
		allowed := make(map[string]struct{}, len(colors))
		for _, c := range colors {
			allowed[c] = struct{}{}
		}
		filtered = make([]records.Record, 0, len(dataset))
		for _, rec := range dataset {
			if _, ok := allowed[rec.Color]; ok {
				filtered = append(filtered, rec)
			}
		}
	}

	if offset >= len(filtered) {
		return []records.Record{}
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end]
}

// GenerateRecords builds a deterministic dataset of n records with ids
// "1".."n", cycling colors and alternating dispositions.
func GenerateRecords(n int) []records.Record {
	colors := []string{"red", "brown", "blue", "yellow", "green"}
	out := make([]records.Record, 0, n)
	for i := 1; i <= n; i++ {
		disp := records.DispositionOpen
		if i%2 == 0 {
			disp = records.DispositionClosed
		}
		out = append(out, records.Record{
			ID:          strconv.Itoa(i),
			Color:       colors[(i-1)%len(colors)],
			Disposition: disp,
		})
	}
	return out
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewBadRequestResponse creates a 400 Bad Request response.
func NewBadRequestResponse(msg string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       fmt.Sprintf(`{"error": %q}`, msg),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not a record list.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"records": "not-a-list"`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
