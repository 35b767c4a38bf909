// Package batch implements the client side row cache that sits between a
// result cursor and the server. A result is a logically unbounded, 1-based
// sequence of rows that is only ever seen through batches fetched on demand.
//
// The package focuses on:
//   - A windowed cache over the row sequence, holding at most N batches
//   - Most-recently-used retention of batches (strict LRU eviction)
//   - Tracking of the highest row seen and, once reported, the final row
//   - Forward, backward and absolute positioning with before-first and
//     after-last sentinel positions
//   - A non-blocking look-ahead that prefetches the next batch in the background
//
// Key Components:
//
//   - Batch: An immutable, contiguous run of rows [BeginRow, EndRow] as returned
//     by one fetch. A batch may report that it holds the final row (IsLast) or
//     carry the final row number explicitly (FinalRow).
//
//   - BatchFetcher: The interface to the wire layer. RequestBatch(ctx, beginRow)
//     returns a batch starting at or before beginRow. Passing RowEnd asks the
//     source to materialize the remainder and report the final row.
//
//   - BatchResults: The cursor state. Row 0 is "before first", FinalRow+1 is
//     "after last". The current row is memoized until the row number changes.
//
// Row Numbering:
//
//	row:     0      1 .. 10   11 .. 20   21 .. 23     24
//	       before   batch A   batch B    batch C    after
//	       first                        (IsLast)    last
//
// Trailing Rows (offset):
//
//	Absolute and HasNext accept an offset: the number of rows at the end of the
//	sequence that do not belong to the row data (e.g. the output parameters of a
//	procedure call). Navigation treats FinalRow-offset as the last data row.
//
// Errors:
//
//   - ErrContractViolation: the fetch source returned a batch that breaks the
//     BatchFetcher contract (an empty non-final batch, a batch not covering the
//     requested row, a conflicting final row). Not retryable.
//   - ErrForwardOnly: a backward movement was requested on a forward-only cache.
//   - Any error returned by the fetcher is wrapped and returned as is. The cache
//     state is not modified by a failed fetch, so the same call can be retried.
//
// Thread Safety:
//
//	BatchResults is NOT safe for concurrent use. One goroutine drives one cursor.
//	The only goroutine the cache starts itself is the background prefetch of
//	HasNext(.., blocking=false), and the cache never has more than one fetch in
//	flight.
package batch
