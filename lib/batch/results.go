package batch

import (
	"context"
	"fmt"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var Logger = logger.GetLogger("batch")

const (
	// DefaultCachedBatches is the number of batches a scrollable cache keeps
	DefaultCachedBatches = 3
)

// --------------------------------------------------------------------------
// Options and result types
// --------------------------------------------------------------------------

// Options configures a BatchResults instance.
type Options struct {
	// MaxCachedBatches is the capacity of the batch cache (default 3).
	// Forward-only caches always hold a single batch.
	MaxCachedBatches int
	// Scrollable enables Previous and backward Absolute movements.
	Scrollable bool
}

// HasNextResult is the answer of HasNext. It is Unknown only for non-blocking calls.
type HasNextResult uint8

const (
	Unknown HasNextResult = iota // answer needs a fetch that has not completed yet
	HasMore                      // the row exists
	NoMore                       // the row does not exist
)

// String returns the string representation of a HasNextResult.
func (r HasNextResult) String() string {
	switch r {
	case HasMore:
		return "has-more"
	case NoMore:
		return "no-more"
	default:
		return "unknown"
	}
}

// pendingFetch is a batch request running in the background
type pendingFetch struct {
	beginRow int
	done     chan struct{}
	batch    *Batch
	err      error
}

// --------------------------------------------------------------------------
// BatchResults
// --------------------------------------------------------------------------

// BatchResults is a cursor over a row sequence that is fetched in batches.
// It is not safe for concurrent use (see package documentation).
type BatchResults struct {
	fetcher    BatchFetcher
	scrollable bool

	// batches holds the cached batches keyed by their begin row, in LRU order
	batches *simplelru.LRU[int, *Batch]

	currentRowNumber int
	currentRow       Row
	currentRowLoaded bool

	highestRowNumber int
	finalRowNumber   int

	pending *pendingFetch
}

// NewBatchResults creates a cache positioned before the first row.
// first is the batch delivered together with the execution response.
func NewBatchResults(fetcher BatchFetcher, first *Batch, opts Options) (*BatchResults, error) {
	capacity := opts.MaxCachedBatches
	if capacity <= 0 {
		capacity = DefaultCachedBatches
	}
	if !opts.Scrollable {
		capacity = 1
	}

	lru, err := simplelru.NewLRU[int, *Batch](capacity, func(beginRow int, b *Batch) {
		evictionsTotal.Inc()
		Logger.Debugf("evicted %s", b)
	})
	if err != nil {
		return nil, err
	}

	r := &BatchResults{
		fetcher:        fetcher,
		scrollable:     opts.Scrollable,
		batches:        lru,
		finalRowNumber: NoFinalRow,
	}
	if err := r.SetBatch(first); err != nil {
		return nil, err
	}
	return r, nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// CurrentRowNumber returns the row the cursor is on. 0 is before the first row.
func (r *BatchResults) CurrentRowNumber() int {
	return r.currentRowNumber
}

// HighestRowNumber returns the highest row number received so far.
func (r *BatchResults) HighestRowNumber() int {
	return r.highestRowNumber
}

// FinalRowNumber returns the final row number or NoFinalRow if it is not known yet.
func (r *BatchResults) FinalRowNumber() int {
	return r.finalRowNumber
}

// Scrollable returns whether backward movements are allowed.
func (r *BatchResults) Scrollable() bool {
	return r.scrollable
}

// CachedBatches returns the begin rows of the cached batches, most recently used first.
func (r *BatchResults) CachedBatches() []int {
	keys := r.batches.Keys()
	mru := make([]int, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		mru = append(mru, keys[i])
	}
	return mru
}

// --------------------------------------------------------------------------
// Row access
// --------------------------------------------------------------------------

// CurrentRow returns the row the cursor is on, or nil when the cursor is
// before the first or after the last row. A cache miss fetches a batch
// starting at the current row.
func (r *BatchResults) CurrentRow(ctx context.Context) (Row, error) {
	if r.currentRowLoaded {
		return r.currentRow, nil
	}
	if r.currentRowNumber == 0 || r.isAfterFinal(r.currentRowNumber) {
		return nil, nil
	}

	// Case cache hit
	if b := r.lookup(r.currentRowNumber); b != nil {
		cacheHitsTotal.Inc()
		r.setCurrentRow(b)
		return r.currentRow, nil
	}
	cacheMissesTotal.Inc()

	// A prefetch may already carry the row
	if err := r.awaitPending(ctx); err != nil {
		return nil, err
	}
	if b := r.lookup(r.currentRowNumber); b != nil {
		r.setCurrentRow(b)
		return r.currentRow, nil
	}

	// Case cache miss
	b, err := r.fetch(ctx, r.currentRowNumber)
	if err != nil {
		return nil, err
	}
	if !b.Covers(r.currentRowNumber) {
		if r.isAfterFinal(r.currentRowNumber) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: requested row %d, got %s", ErrContractViolation, r.currentRowNumber, b)
	}
	r.setCurrentRow(b)
	return r.currentRow, nil
}

// --------------------------------------------------------------------------
// Navigation
// --------------------------------------------------------------------------

// Next moves to the next row. It returns false once the cursor moved past
// the last row; further calls keep returning false without moving.
func (r *BatchResults) Next(ctx context.Context) (bool, error) {
	has, err := r.HasNext(ctx, 1, true)
	if err != nil {
		return false, err
	}

	if has == HasMore {
		prev := r.currentRowNumber
		r.setCurrentRowNumber(prev + 1)
		if _, err := r.CurrentRow(ctx); err != nil {
			r.setCurrentRowNumber(prev)
			return false, err
		}
		return true, nil
	}

	// Move from the last row to after last
	if r.currentRowNumber == r.highestRowNumber {
		r.setCurrentRowNumber(r.currentRowNumber + 1)
	}
	return false, nil
}

// Previous moves to the previous row. It returns false when the cursor ends
// up before the first row.
func (r *BatchResults) Previous() (bool, error) {
	if !r.scrollable {
		return false, ErrForwardOnly
	}
	if r.currentRowNumber != 0 && r.currentRowNumber != 1 {
		r.setCurrentRowNumber(r.currentRowNumber - 1)
		return true, nil
	}
	if r.currentRowNumber == 1 {
		r.setCurrentRowNumber(0)
	}
	return false, nil
}

// Absolute moves the cursor to row. Positive rows count from the start,
// negative rows from the end (-1 is the last data row) and 0 moves before
// the first row. offset is the number of trailing rows that are not data rows.
// It returns whether the cursor is on a data row afterwards.
func (r *BatchResults) Absolute(ctx context.Context, row, offset int) (bool, error) {
	if !r.scrollable && (row < 0 || row < r.currentRowNumber) {
		return false, ErrForwardOnly
	}

	// Case before first
	if row == 0 {
		r.setCurrentRowNumber(0)
		return false, nil
	}

	// Case counted from the start (compared as row <= highest-offset, row+offset may overflow)
	if row > 0 {
		for row > r.highestRowNumber-offset && r.finalRowNumber == NoFinalRow {
			// skip the gap between the highest row and the target, the batch
			// then starts at the row the cursor lands on
			begin := r.highestRowNumber + 1
			if row > begin {
				begin = row
			}
			if err := r.fetchForward(ctx, begin); err != nil {
				return false, err
			}
		}
		if row <= r.highestRowNumber-offset {
			r.setCurrentRowNumber(row)
			return true, nil
		}
		r.setCurrentRowNumber(r.finalRowNumber + 1 - offset)
		return false, nil
	}

	// Case counted from the end
	if r.finalRowNumber == NoFinalRow {
		if err := r.awaitPending(ctx); err != nil {
			return false, err
		}
	}
	if r.finalRowNumber == NoFinalRow {
		if _, err := r.fetch(ctx, RowEnd); err != nil {
			return false, err
		}
		if r.finalRowNumber == NoFinalRow {
			return false, fmt.Errorf("%w: request to the end did not report the final row", ErrContractViolation)
		}
	}
	target := r.finalRowNumber + row + 1 - offset
	if target <= 0 {
		r.setCurrentRowNumber(0)
		return false, nil
	}
	r.setCurrentRowNumber(target)
	return true, nil
}

// HasNext reports whether the row currentRow+lookahead exists. If answering
// requires a fetch and blocking is false, a background fetch is started (at
// most one) and Unknown is returned until it completes.
func (r *BatchResults) HasNext(ctx context.Context, lookahead int, blocking bool) (HasNextResult, error) {
	for r.currentRowNumber+lookahead > r.highestRowNumber && r.finalRowNumber == NoFinalRow {
		if !blocking {
			if r.pending == nil {
				r.startPending(ctx, r.highestRowNumber+1)
			}
			select {
			case <-r.pending.done:
				if err := r.applyPending(); err != nil {
					return Unknown, err
				}
				continue
			default:
				return Unknown, nil
			}
		}

		if err := r.fetchForward(ctx, r.highestRowNumber+1); err != nil {
			return Unknown, err
		}
	}

	if r.currentRowNumber+lookahead <= r.highestRowNumber {
		return HasMore, nil
	}
	return NoMore, nil
}

// Close waits for a running background fetch and drops its batch, so no
// request is in flight once the result is released. The cache must not be
// used afterwards.
func (r *BatchResults) Close(ctx context.Context) error {
	if r.pending == nil {
		return nil
	}
	select {
	case <-r.pending.done:
		r.pending = nil
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Batch handling
// --------------------------------------------------------------------------

// SetBatch inserts a fetched batch. The least recently used batch is evicted
// if the cache is full. A batch violating the fetch contract is rejected and
// leaves the cache unchanged.
func (r *BatchResults) SetBatch(b *Batch) error {
	if err := b.validate(); err != nil {
		return err
	}

	// Check the batch against what is already known
	if r.finalRowNumber != NoFinalRow {
		if b.FinalRow != NoFinalRow && b.FinalRow != r.finalRowNumber {
			return fmt.Errorf("%w: final row changed from %d to %d", ErrContractViolation, r.finalRowNumber, b.FinalRow)
		}
		if b.EndRow > r.finalRowNumber {
			return fmt.Errorf("%w: %s ends after final row %d", ErrContractViolation, b, r.finalRowNumber)
		}
	} else if b.FinalRow != NoFinalRow && b.FinalRow < r.highestRowNumber {
		return fmt.Errorf("%w: final row %d is before highest row seen %d", ErrContractViolation, b.FinalRow, r.highestRowNumber)
	}

	// Empty batches only carry the final row
	if b.Len() > 0 {
		r.batches.Add(b.BeginRow, b)
	}

	if b.FinalRow != NoFinalRow {
		r.finalRowNumber = b.FinalRow
		r.highestRowNumber = b.FinalRow
	} else if b.EndRow > r.highestRowNumber {
		r.highestRowNumber = b.EndRow
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// isAfterFinal returns whether the row is known to be after the final row
func (r *BatchResults) isAfterFinal(row int) bool {
	return r.finalRowNumber != NoFinalRow && row > r.finalRowNumber
}

// setCurrentRowNumber moves the cursor and drops the memoized row
func (r *BatchResults) setCurrentRowNumber(row int) {
	if row == r.currentRowNumber {
		return
	}
	r.currentRowNumber = row
	r.currentRow = nil
	r.currentRowLoaded = false
}

// setCurrentRow memoizes the current row from a batch covering it
func (r *BatchResults) setCurrentRow(b *Batch) {
	r.currentRow = b.Row(r.currentRowNumber)
	r.currentRowLoaded = true
}

// lookup returns the cached batch covering row and promotes it to most recently used
func (r *BatchResults) lookup(row int) *Batch {
	keys := r.batches.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		b, ok := r.batches.Peek(keys[i])
		if !ok || !b.Covers(row) {
			continue
		}
		r.batches.Get(keys[i])
		return b
	}
	return nil
}

// fetchForward fetches a batch that must move the high-water mark or reveal the final row
func (r *BatchResults) fetchForward(ctx context.Context, beginRow int) error {
	// a landed prefetch may already be the batch we need
	if r.pending != nil {
		highest := r.highestRowNumber
		if err := r.awaitPending(ctx); err != nil {
			return err
		}
		if r.highestRowNumber > highest || r.finalRowNumber != NoFinalRow {
			return nil
		}
	}

	highest := r.highestRowNumber
	if _, err := r.fetch(ctx, beginRow); err != nil {
		return err
	}
	if r.highestRowNumber <= highest && r.finalRowNumber == NoFinalRow {
		return fmt.Errorf("%w: request for row %d did not advance past row %d", ErrContractViolation, beginRow, highest)
	}
	return nil
}

// fetch synchronously requests a batch and inserts it
func (r *BatchResults) fetch(ctx context.Context, beginRow int) (*Batch, error) {
	if err := r.awaitPending(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	fetchTotal.Inc()
	b, err := r.fetcher.RequestBatch(ctx, beginRow)
	fetchDuration.UpdateDuration(start)
	if err != nil {
		fetchErrorsTotal.Inc()
		return nil, fmt.Errorf("failed to fetch batch at row %d: %w", beginRow, err)
	}
	Logger.Debugf("fetched %s for row %d in %s", b, beginRow, time.Since(start))

	if err := r.SetBatch(b); err != nil {
		return nil, err
	}
	return b, nil
}

// startPending requests a batch in the background
func (r *BatchResults) startPending(ctx context.Context, beginRow int) {
	p := &pendingFetch{
		beginRow: beginRow,
		done:     make(chan struct{}),
	}
	r.pending = p
	prefetchTotal.Inc()

	// the prefetch outlives the call that started it
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(p.done)
		start := time.Now()
		fetchTotal.Inc()
		p.batch, p.err = r.fetcher.RequestBatch(ctx, beginRow)
		fetchDuration.UpdateDuration(start)
	}()
}

// awaitPending waits for a background fetch (if any) and inserts its batch
func (r *BatchResults) awaitPending(ctx context.Context) error {
	if r.pending == nil {
		return nil
	}
	select {
	case <-r.pending.done:
		return r.applyPending()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// applyPending inserts the batch of a completed background fetch
func (r *BatchResults) applyPending() error {
	p := r.pending
	r.pending = nil
	if p.err != nil {
		fetchErrorsTotal.Inc()
		return fmt.Errorf("failed to prefetch batch at row %d: %w", p.beginRow, p.err)
	}
	Logger.Debugf("prefetched %s for row %d", p.batch, p.beginRow)
	return r.SetBatch(p.batch)
}
