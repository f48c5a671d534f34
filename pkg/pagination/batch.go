package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/managed-records/pkg/records"
	"github.com/rs/zerolog"
)

// ErrRangeTooLarge is returned when a range spans more than Config.MaxPages.
var ErrRangeTooLarge = errors.New("page range too large")

// Config holds batch retriever configuration
type Config struct {
	// MaxConcurrency is the maximum number of pages retrieved in parallel.
	// Each page costs two requests (fetch + probe).
	MaxConcurrency int
	// MaxPages caps the number of pages in one range.
	MaxPages int
	// Timeout per page retrieval
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		MaxPages:       100,
		Timeout:        15 * time.Second,
	}
}

// pageOutcome is the result of retrieving a single page
type pageOutcome struct {
	page   int
	result *PageResult
	err    error
}

// BatchRetriever retrieves a range of pages in parallel
type BatchRetriever struct {
	retriever *Retriever
	config    Config
	logger    zerolog.Logger
}

// NewBatchRetriever creates a new batch retriever
func NewBatchRetriever(retriever *Retriever, config Config) *BatchRetriever {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 100
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchRetriever{
		retriever: retriever,
		config:    config,
		logger:    retriever.logger,
	}
}

// RetrieveRange retrieves pages first..last (inclusive) using a worker pool.
// Ranges longer than Config.MaxPages are rejected with ErrRangeTooLarge.
// It returns every page that was retrieved; when any page failed the first
// failure is returned alongside the partial results.
func (b *BatchRetriever) RetrieveRange(ctx context.Context, first, last int, colors []string) (map[int]*PageResult, error) {
	if first < 1 {
		return nil, fmt.Errorf("%w (first=%d)", records.ErrInvalidPage, first)
	}
	if last < first {
		return nil, fmt.Errorf("invalid page range %d..%d", first, last)
	}
	if last > records.MaxPage {
		return nil, fmt.Errorf("%w (last=%d)", records.ErrInvalidPage, last)
	}

	total := last - first + 1
	if total > b.config.MaxPages {
		return nil, fmt.Errorf("%w: %d pages, limit %d", ErrRangeTooLarge, total, b.config.MaxPages)
	}

	start := time.Now()

	b.logger.Info().
		Int("first", first).
		Int("last", last).
		Strs("colors", colors).
		Msg("Starting parallel page retrieval")

	// Queue every page up front so no producer goroutine can block on a
	// cancelled pool. total is bounded by MaxPages.
	pageQueue := make(chan int, total)
	for page := first; page <= last; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	outcomes := make(chan pageOutcome, total)

	workers := b.config.MaxConcurrency
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go b.worker(ctx, colors, pageQueue, outcomes, &wg, i)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make(map[int]*PageResult, total)
	var firstErr error
	for outcome := range outcomes {
		if outcome.err != nil {
			if firstErr == nil {
				firstErr = outcome.err
			}
			continue
		}
		results[outcome.page] = outcome.result
	}

	if firstErr == nil && len(results) < total {
		// Workers stopped early on cancellation.
		firstErr = ctx.Err()
	}

	if firstErr != nil {
		b.logger.Warn().
			Err(firstErr).
			Int("retrieved", len(results)).
			Int("total", total).
			Msg("Range retrieval incomplete - returning partial results")
		return results, fmt.Errorf("range retrieval (partial data: %d/%d pages): %w", len(results), total, firstErr)
	}

	b.logger.Info().
		Int("pages", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Range retrieval complete")

	return results, nil
}

// worker processes pages from the queue
func (b *BatchRetriever) worker(ctx context.Context, colors []string, pageQueue <-chan int, outcomes chan<- pageOutcome, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for page := range pageQueue {
		select {
		case <-ctx.Done():
			b.logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		pageCtx, cancel := context.WithTimeout(ctx, b.config.Timeout)
		result, err := b.retriever.Retrieve(pageCtx, records.PageRequest{Page: page, Colors: colors})
		cancel()

		// outcomes is buffered for every page, so this never blocks.
		outcomes <- pageOutcome{page: page, result: result, err: err}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		b.logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
