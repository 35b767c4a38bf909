package batch

import (
	"context"
	"fmt"
	"math"
)

// RowEnd is passed to BatchFetcher.RequestBatch to request the remainder of
// the result. The returned batch must report the final row.
const RowEnd = math.MaxInt32

// NoFinalRow marks an unknown final row number.
const NoFinalRow = -1

// Row is a single row, the ordered values of its columns.
type Row []any

// BatchFetcher is implemented by the wire layer.
type BatchFetcher interface {
	// RequestBatch returns a batch whose BeginRow is <= beginRow (typically ==).
	// The batch must contain at least one row unless it is the final batch.
	// It is never called concurrently by the same BatchResults.
	RequestBatch(ctx context.Context, beginRow int) (*Batch, error)
}

// FetcherFunc adapts a function to the BatchFetcher interface.
type FetcherFunc func(ctx context.Context, beginRow int) (*Batch, error)

// RequestBatch calls f(ctx, beginRow).
func (f FetcherFunc) RequestBatch(ctx context.Context, beginRow int) (*Batch, error) {
	return f(ctx, beginRow)
}

// Batch is an immutable, contiguous and 1-based run of rows.
type Batch struct {
	Rows     []Row
	BeginRow int // inclusive
	EndRow   int // inclusive, BeginRow + len(Rows) - 1
	IsLast   bool
	FinalRow int // final row of the whole result, NoFinalRow if unknown
}

// NewBatch creates a batch for rows starting at beginRow.
// A final batch reports its EndRow as the final row of the result.
func NewBatch(rows []Row, beginRow int, isLast bool) *Batch {
	b := &Batch{
		Rows:     rows,
		BeginRow: beginRow,
		EndRow:   beginRow + len(rows) - 1,
		IsLast:   isLast,
		FinalRow: NoFinalRow,
	}
	if isLast {
		b.FinalRow = b.EndRow
	}
	return b
}

// WithFinalRow sets the final row number reported by the source and returns the batch.
func (b *Batch) WithFinalRow(finalRow int) *Batch {
	b.FinalRow = finalRow
	return b
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Rows)
}

// Covers returns whether row lies within [BeginRow, EndRow].
func (b *Batch) Covers(row int) bool {
	return len(b.Rows) > 0 && row >= b.BeginRow && row <= b.EndRow
}

// Row returns the row with the given absolute row number.
// The caller must check Covers first.
func (b *Batch) Row(row int) Row {
	return b.Rows[row-b.BeginRow]
}

// validate checks the invariants every batch must satisfy
func (b *Batch) validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil batch", ErrContractViolation)
	}
	if len(b.Rows) == 0 && !b.IsLast {
		return fmt.Errorf("%w: empty batch at row %d is not marked last", ErrContractViolation, b.BeginRow)
	}
	if b.BeginRow < 1 {
		return fmt.Errorf("%w: batch begins at row %d", ErrContractViolation, b.BeginRow)
	}
	if b.EndRow != b.BeginRow+len(b.Rows)-1 {
		return fmt.Errorf("%w: batch [%d, %d] holds %d rows", ErrContractViolation, b.BeginRow, b.EndRow, len(b.Rows))
	}
	if b.FinalRow != NoFinalRow && b.FinalRow < b.EndRow {
		return fmt.Errorf("%w: final row %d is before batch end %d", ErrContractViolation, b.FinalRow, b.EndRow)
	}
	return nil
}

// String returns a short description of the batch
func (b *Batch) String() string {
	if b.FinalRow != NoFinalRow {
		return fmt.Sprintf("batch[%d..%d final=%d]", b.BeginRow, b.EndRow, b.FinalRow)
	}
	return fmt.Sprintf("batch[%d..%d]", b.BeginRow, b.EndRow)
}
