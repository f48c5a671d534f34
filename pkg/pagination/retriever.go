package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/managed-records/pkg/logging"
	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrPanic marks a RetrieveError caused by a panic inside the pipeline.
var ErrPanic = errors.New("panic in retrieval pipeline")

// PageResult is one retrieved page with its boundary metadata.
// PreviousPage and NextPage are nil when no such page exists.
type PageResult struct {
	PreviousPage       *int                      `json:"previousPage"`
	NextPage           *int                      `json:"nextPage"`
	IDs                []string                  `json:"ids"`
	Open               []records.AugmentedRecord `json:"open"`
	ClosedPrimaryCount int                       `json:"closedPrimaryCount"`
}

// newPageResult assembles the result for page.
func newPageResult(page int, hasNext bool, summary records.Summary) *PageResult {
	result := &PageResult{
		IDs:                summary.IDs,
		Open:               summary.Open,
		ClosedPrimaryCount: summary.ClosedPrimaryCount,
	}
	if page > 1 {
		prev := page - 1
		result.PreviousPage = &prev
	}
	if hasNext {
		next := page + 1
		result.NextPage = &next
	}
	return result
}

// RetrieveError is an orchestration failure. It is returned instead of a
// PageResult, never alongside one.
type RetrieveError struct {
	Op   string
	Page int
	Err  error
}

// Error implements the error interface.
func (e *RetrieveError) Error() string {
	return fmt.Sprintf("retrieve page %d: %s: %v", e.Page, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RetrieveError) Unwrap() error {
	return e.Err
}

// Retriever fetches a page and probes for the next one concurrently, then
// classifies and aggregates the fetched records.
type Retriever struct {
	fetcher *PageFetcher
	probe   *NextPageProbe
	logger  zerolog.Logger
}

// NewRetriever creates a retriever reading from source.
func NewRetriever(source Source, logger zerolog.Logger) *Retriever {
	fetcher := NewPageFetcher(source, logger)
	return &Retriever{
		fetcher: fetcher,
		probe:   NewNextPageProbe(fetcher),
		logger:  logger,
	}
}

// Retrieve returns the page selected by req. Page 0 means page 1.
//
// Transport failures never surface here: a failed fetch yields an empty page
// and a failed probe yields no next page. The error return is reserved for
// invalid requests, a cancelled ctx and panics in the pipeline.
func (r *Retriever) Retrieve(ctx context.Context, req records.PageRequest) (*PageResult, error) {
	start := time.Now()
	defer func() {
		retrieveDuration.Observe(time.Since(start).Seconds())
	}()

	req, err := req.Normalize()
	if err != nil {
		return nil, r.fail(req, opValidate, err)
	}

	var (
		recs    []records.Record
		hasNext bool
	)

	// Both branches fail soft, so the group only errors on panic.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return guard(opFetch, func() {
			recs = r.fetcher.Fetch(gctx, req)
		})
	})
	g.Go(func() error {
		return guard(opProbe, func() {
			hasNext = r.probe.HasNext(gctx, req)
		})
	})

	if err := g.Wait(); err != nil {
		return nil, r.fail(req, opOf(err), err)
	}

	// A cancelled caller gets an error, not an empty page built from
	// aborted requests.
	if err := ctx.Err(); err != nil {
		return nil, r.fail(req, opJoin, err)
	}

	var summary records.Summary
	if err := guard(opAggregate, func() {
		summary = records.Aggregate(records.Classify(recs))
	}); err != nil {
		return nil, r.fail(req, opAggregate, err)
	}

	logger := logging.ForRequest(r.logger, req)
	logger.Debug().
		Int("records", len(summary.IDs)).
		Bool("has_next", hasNext).
		Dur("duration", time.Since(start)).
		Msg("Page retrieved")

	return newPageResult(req.Page, hasNext, summary), nil
}

// fail logs an orchestration failure and wraps it in a RetrieveError.
func (r *Retriever) fail(req records.PageRequest, op string, err error) error {
	var retErr *RetrieveError
	if errors.As(err, &retErr) {
		err = retErr.Err
	}

	retrieveErrors.WithLabelValues(op).Inc()
	logger := logging.ForRequest(r.logger, req)
	logger.Error().
		Err(err).
		Str(logging.FieldOp, op).
		Msg("Page retrieval failed")

	return &RetrieveError{Op: op, Page: req.Page, Err: err}
}

// guard runs fn and converts a panic into a RetrieveError tagged with op.
func guard(op string, fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RetrieveError{Op: op, Err: fmt.Errorf("%w: %v", ErrPanic, p)}
		}
	}()
	fn()
	return nil
}

// opOf returns the operation recorded on err, or "join".
func opOf(err error) string {
	var retErr *RetrieveError
	if errors.As(err, &retErr) {
		return retErr.Op
	}
	return opJoin
}
