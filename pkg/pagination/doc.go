// Package pagination retrieves one page of records together with the
// page-boundary metadata the records endpoint does not report itself.
//
// The endpoint returns a bare JSON array for an offset/limit window, with no
// total count and no last-page marker. Whether a next page exists is settled
// by a lookahead probe: the page after the requested one is fetched and
// checked for emptiness. A page that is exactly full is therefore handled
// correctly in both directions.
//
// Example usage:
//
//	c, _ := client.New(client.DefaultConfig("http://localhost:3000/records", "app/1.0"))
//	r := pagination.NewRetriever(c, logger)
//	result, err := r.Retrieve(ctx, records.PageRequest{Page: 2, Colors: []string{"red", "brown"}})
//
// The retriever:
//   - Runs the page fetch and the next-page probe concurrently and joins both
//   - Normalizes transport failures to an empty page (fetch) or false (probe)
//   - Classifies records by primary color and folds them into ids, open
//     records and a closed-primary count
//   - Returns orchestration failures as *RetrieveError, never as data
//
// BatchRetriever runs Retrieve for a range of pages on a bounded worker pool.
//
// Caching is not part of the retriever. Wrap the Source instead, see
// package cache.
package pagination
