package pagination

import (
	"context"
	"strconv"

	"github.com/Sternrassler/managed-records/pkg/logging"
	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/rs/zerolog"
)

// Operation names used in logs, metrics and RetrieveError.
const (
	opValidate  = "validate"
	opFetch     = "fetch"
	opProbe     = "probe"
	opJoin      = "join"
	opAggregate = "aggregate"
)

// Source lists one offset/limit window of records.
// *client.Client satisfies it; cache.Source decorates it.
type Source interface {
	ListRecords(ctx context.Context, q records.Query) ([]records.Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, q records.Query) ([]records.Record, error)

// ListRecords calls f.
func (f SourceFunc) ListRecords(ctx context.Context, q records.Query) ([]records.Record, error) {
	return f(ctx, q)
}

// PageFetcher fetches one page and never fails: any error from the source
// is logged and reported as an empty page. Callers cannot tell "no records"
// from "fetch failed" at this layer.
type PageFetcher struct {
	source Source
	logger zerolog.Logger
}

// NewPageFetcher creates a fetcher over source.
func NewPageFetcher(source Source, logger zerolog.Logger) *PageFetcher {
	return &PageFetcher{
		source: source,
		logger: logger,
	}
}

// Fetch returns the records of req.Page, or an empty slice on failure.
func (f *PageFetcher) Fetch(ctx context.Context, req records.PageRequest) []records.Record {
	return f.fetch(ctx, req, opFetch)
}

func (f *PageFetcher) fetch(ctx context.Context, req records.PageRequest, op string) []records.Record {
	q := records.QueryFor(req)

	recs, err := f.source.ListRecords(ctx, q)
	if err != nil {
		pageFetchFailures.WithLabelValues(op).Inc()
		logger := logging.ForRequest(f.logger, req)
		logger.Warn().
			Err(err).
			Str(logging.FieldOp, op).
			Int(logging.FieldOffset, q.Offset).
			Msg("Page fetch failed, treating page as empty")
		return []records.Record{}
	}

	if recs == nil {
		return []records.Record{}
	}
	return recs
}

// NextPageProbe decides whether a page exists after the requested one by
// fetching it. It fails closed: any failure reports no next page.
type NextPageProbe struct {
	fetcher *PageFetcher
}

// NewNextPageProbe creates a probe that fetches through fetcher.
func NewNextPageProbe(fetcher *PageFetcher) *NextPageProbe {
	return &NextPageProbe{fetcher: fetcher}
}

// HasNext reports whether page req.Page+1 with the same colors is non-empty.
func (p *NextPageProbe) HasNext(ctx context.Context, req records.PageRequest) bool {
	recs := p.fetcher.fetch(ctx, req.Next(), opProbe)

	found := len(recs) > 0
	nextPageProbes.WithLabelValues(strconv.FormatBool(found)).Inc()
	return found
}
