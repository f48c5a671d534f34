package pagination

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/Sternrassler/managed-records/internal/testutil"
	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// fakeSource serves a dataset in memory and records every query.
type fakeSource struct {
	mu       sync.Mutex
	dataset  []records.Record
	failures map[int]error // keyed by offset
	queries  []records.Query
}

func newFakeSource(dataset []records.Record) *fakeSource {
	return &fakeSource{dataset: dataset, failures: make(map[int]error)}
}

func (s *fakeSource) failOffset(offset int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[offset] = err
}

func (s *fakeSource) ListRecords(ctx context.Context, q records.Query) ([]records.Record, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	err := s.failures[q.Offset]
	dataset := s.dataset
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return testutil.FilterPage(dataset, q.Offset, q.Limit, q.Colors), nil
}

func (s *fakeSource) recorded() []records.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]records.Query(nil), s.queries...)
}

func TestPageFetcher_Fetch(t *testing.T) {
	src := newFakeSource(testutil.GenerateRecords(25))
	f := NewPageFetcher(src, testLogger())

	got := f.Fetch(context.Background(), records.PageRequest{Page: 3})

	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if got[0].ID != "21" {
		t.Errorf("first id = %s, want 21", got[0].ID)
	}

	q := src.recorded()[0]
	if q.Offset != 20 || q.Limit != records.PageSize {
		t.Errorf("query = %+v, want offset 20 limit 10", q)
	}
}

func TestPageFetcher_FailureIsEmpty(t *testing.T) {
	src := newFakeSource(testutil.GenerateRecords(25))
	src.failOffset(0, errors.New("connection refused"))
	f := NewPageFetcher(src, testLogger())

	got := f.Fetch(context.Background(), records.PageRequest{Page: 1})

	if got == nil || len(got) != 0 {
		t.Errorf("Fetch() = %#v, want empty non-nil slice", got)
	}
}

func TestPageFetcher_NilFromSourceIsEmpty(t *testing.T) {
	src := SourceFunc(func(ctx context.Context, q records.Query) ([]records.Record, error) {
		return nil, nil
	})
	f := NewPageFetcher(src, testLogger())

	got := f.Fetch(context.Background(), records.PageRequest{Page: 1})
	if got == nil || len(got) != 0 {
		t.Errorf("Fetch() = %#v, want empty non-nil slice", got)
	}
}

func TestPageFetcher_PassesColors(t *testing.T) {
	src := newFakeSource(testutil.GenerateRecords(25))
	f := NewPageFetcher(src, testLogger())

	got := f.Fetch(context.Background(), records.PageRequest{Page: 1, Colors: []string{"brown"}})

	for _, r := range got {
		if r.Color != "brown" {
			t.Errorf("record %s color = %s, want brown", r.ID, r.Color)
		}
	}
	if q := src.recorded()[0]; len(q.Colors) != 1 || q.Colors[0] != "brown" {
		t.Errorf("query colors = %v, want [brown]", q.Colors)
	}
}

func TestNextPageProbe_HasNext(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		page    int
		colors  []string
		want    bool
		wantOff int
	}{
		{name: "more pages", total: 25, page: 1, want: true, wantOff: 10},
		{name: "last partial page", total: 25, page: 3, want: false, wantOff: 30},
		{name: "exactly full last page", total: 20, page: 2, want: false, wantOff: 20},
		{name: "one record beyond full page", total: 21, page: 2, want: true, wantOff: 20},
		{name: "filtered", total: 25, page: 1, colors: []string{"red"}, want: false, wantOff: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(testutil.GenerateRecords(tt.total))
			p := NewNextPageProbe(NewPageFetcher(src, testLogger()))

			got := p.HasNext(context.Background(), records.PageRequest{Page: tt.page, Colors: tt.colors})
			if got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}

			q := src.recorded()[0]
			if q.Offset != tt.wantOff {
				t.Errorf("probe offset = %d, want %d", q.Offset, tt.wantOff)
			}
			if len(q.Colors) != len(tt.colors) {
				t.Errorf("probe colors = %v, want %v", q.Colors, tt.colors)
			}
		})
	}
}

func TestNextPageProbe_FailsClosed(t *testing.T) {
	src := newFakeSource(testutil.GenerateRecords(50))
	src.failOffset(10, errors.New("503 Service Unavailable"))
	p := NewNextPageProbe(NewPageFetcher(src, testLogger()))

	if p.HasNext(context.Background(), records.PageRequest{Page: 1}) {
		t.Error("HasNext() = true on failure, want false")
	}
}
