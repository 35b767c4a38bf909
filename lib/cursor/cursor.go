package cursor

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/lni/dragonboat/v4/logger"
	"math"
)

var Logger = logger.GetLogger("cursor")

// Column describes one column of a cursor
type Column struct {
	Name string
	Type string
}

// Closer releases the server side of a result
type Closer func(ctx context.Context) error

// Options configures a cursor
type Options struct {
	// Scrollable enables every movement besides Next
	Scrollable bool
	// MaxCachedBatches is passed to the batch cache of scrollable cursors
	MaxCachedBatches int
	// ParameterRows is the number of trailing output parameter rows (0 or 1)
	ParameterRows int
	// Closer is called once by Close
	Closer Closer
}

// Cursor is a result set positioned on one row at a time. Row numbers are
// 1-based, 0 is before the first row and the row after the last data row is
// after last. It is not safe for concurrent use.
type Cursor struct {
	results    *batch.BatchResults
	columns    []Column
	paramRows  int
	scrollable bool
	closer     Closer
	closed     bool

	outParams batch.Row
}

// New creates a cursor before the first row. first is the batch delivered with
// the execution response, fetcher loads every further batch.
func New(fetcher batch.BatchFetcher, first *batch.Batch, columns []Column, opts Options) (*Cursor, error) {
	if opts.ParameterRows < 0 || opts.ParameterRows > 1 {
		return nil, fmt.Errorf("cursor: unsupported number of parameter rows %d", opts.ParameterRows)
	}

	results, err := batch.NewBatchResults(fetcher, first, batch.Options{
		MaxCachedBatches: opts.MaxCachedBatches,
		Scrollable:       opts.Scrollable,
	})
	if err != nil {
		return nil, err
	}

	return &Cursor{
		results:    results,
		columns:    columns,
		paramRows:  opts.ParameterRows,
		scrollable: opts.Scrollable,
		closer:     opts.Closer,
	}, nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Columns returns the columns of the result
func (c *Cursor) Columns() []Column {
	return c.columns
}

// Scrollable returns whether the cursor supports movements besides Next
func (c *Cursor) Scrollable() bool {
	return c.scrollable
}

// ParameterRows returns the number of trailing output parameter rows
func (c *Cursor) ParameterRows() int {
	return c.paramRows
}

// RowNumber returns the current row, 0 if the cursor is not on a row
func (c *Cursor) RowNumber() int {
	if !c.onRow() {
		return 0
	}
	return c.results.CurrentRowNumber()
}

// Row returns the current row
func (c *Cursor) Row(ctx context.Context) (batch.Row, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if !c.onRow() {
		return nil, ErrNoRow
	}
	return c.results.CurrentRow(ctx)
}

// Value returns the value of the column with the 0-based index i in the current row
func (c *Cursor) Value(ctx context.Context, i int) (any, error) {
	if i < 0 || i >= len(c.columns) {
		return nil, fmt.Errorf("%w: %d of %d columns", ErrColumnIndex, i, len(c.columns))
	}
	row, err := c.Row(ctx)
	if err != nil {
		return nil, err
	}
	if i >= len(row) {
		return nil, fmt.Errorf("%w: row %d has %d values", ErrColumnIndex, c.RowNumber(), len(row))
	}
	return row[i], nil
}

// --------------------------------------------------------------------------
// Position predicates
// --------------------------------------------------------------------------

// IsBeforeFirst returns whether the cursor is before the first row of a non empty result
func (c *Cursor) IsBeforeFirst() bool {
	return c.results.CurrentRowNumber() == 0 && !c.isEmpty()
}

// IsAfterLast returns whether the cursor is after the last row of a non empty result
func (c *Cursor) IsAfterLast() bool {
	last, known := c.lastDataRow()
	return known && last > 0 && c.results.CurrentRowNumber() > last
}

// IsFirst returns whether the cursor is on the first row
func (c *Cursor) IsFirst() bool {
	return c.onRow() && c.results.CurrentRowNumber() == 1
}

// IsLast returns whether the cursor is on the last row. This may need a fetch
// to find out whether another row follows.
func (c *Cursor) IsLast(ctx context.Context) (bool, error) {
	if c.closed {
		return false, ErrClosed
	}
	if !c.onRow() {
		return false, nil
	}
	has, err := c.results.HasNext(ctx, 1+c.paramRows, true)
	if err != nil {
		return false, err
	}
	return has == batch.NoMore, nil
}

// --------------------------------------------------------------------------
// Navigation
// --------------------------------------------------------------------------

// Next moves to the next row and returns whether the cursor is on a row
func (c *Cursor) Next(ctx context.Context) (bool, error) {
	if c.closed {
		return false, ErrClosed
	}
	if c.paramRows == 0 {
		return c.results.Next(ctx)
	}

	if last, known := c.lastDataRow(); known && c.results.CurrentRowNumber() > last {
		return false, nil
	}

	// Move first so a single cached batch is read before the look ahead
	// replaces it. Landing on a parameter row is the position after last.
	ok, err := c.results.Next(ctx)
	if err != nil || !ok {
		return ok, err
	}
	has, err := c.results.HasNext(ctx, c.paramRows, true)
	if err != nil {
		return false, err
	}
	return has == batch.HasMore, nil
}

// Prefetch starts loading the batch after the highest row seen in the
// background if the next row is not known yet. It never blocks.
func (c *Cursor) Prefetch(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	_, err := c.results.HasNext(ctx, 1+c.paramRows, false)
	return err
}

// Previous moves to the previous row and returns whether the cursor is on a row
func (c *Cursor) Previous(ctx context.Context) (bool, error) {
	if err := c.checkScrollable(); err != nil {
		return false, err
	}

	return c.results.Previous()
}

// First moves to the first row
func (c *Cursor) First(ctx context.Context) (bool, error) {
	return c.Absolute(ctx, 1)
}

// Last moves to the last row
func (c *Cursor) Last(ctx context.Context) (bool, error) {
	return c.Absolute(ctx, -1)
}

// Absolute moves to row. Negative rows count from the end, -1 is the last row.
// Rows beyond either end leave the cursor before first or after last.
func (c *Cursor) Absolute(ctx context.Context, row int) (bool, error) {
	if err := c.checkScrollable(); err != nil {
		return false, err
	}
	return c.results.Absolute(ctx, row, c.paramRows)
}

// Relative moves n rows forward (or backward for negative n). Relative(0)
// does not move and returns whether the cursor is on a row.
func (c *Cursor) Relative(ctx context.Context, n int) (bool, error) {
	if err := c.checkScrollable(); err != nil {
		return false, err
	}
	if n == 0 {
		return c.onRow(), nil
	}

	// a target before the first row must not be read as counted from the end
	current := c.results.CurrentRowNumber()
	target := max(current+n, 0)
	if n > 0 && target < current {
		target = math.MaxInt
	}
	return c.results.Absolute(ctx, target, c.paramRows)
}

// BeforeFirst moves before the first row
func (c *Cursor) BeforeFirst(ctx context.Context) error {
	_, err := c.Absolute(ctx, 0)
	return err
}

// AfterLast moves after the last row. It has no effect on an empty result.
func (c *Cursor) AfterLast(ctx context.Context) error {
	if err := c.checkScrollable(); err != nil {
		return err
	}

	last, known := c.lastDataRow()
	if !known {
		if _, err := c.results.Absolute(ctx, -1, c.paramRows); err != nil {
			return err
		}
		last, _ = c.lastDataRow()
	}
	if last <= 0 {
		return nil
	}
	_, err := c.results.Absolute(ctx, last+1, c.paramRows)
	return err
}

// OutputParameters returns the output parameter row of a procedure call.
// Forward-only cursors provide it once every data row was read.
func (c *Cursor) OutputParameters(ctx context.Context) (batch.Row, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.paramRows == 0 {
		return nil, ErrNoOutputParameters
	}
	if c.outParams != nil {
		return c.outParams, nil
	}

	var row batch.Row
	var err error
	if c.scrollable {
		row, err = c.readParamRow(ctx)
	} else {
		row, err = c.consumeParamRow(ctx)
	}
	if err != nil {
		return nil, err
	}
	c.outParams = row
	return row, nil
}

// Close releases the cursor and the server side result. Closing twice is a no-op.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true

	// a running prefetch must not race the release of the result
	waitErr := c.results.Close(ctx)
	if waitErr != nil {
		waitErr = fmt.Errorf("failed to await prefetch: %w", waitErr)
	}
	if c.closer == nil {
		return waitErr
	}
	if err := c.closer(ctx); err != nil {
		return errors.Join(waitErr, fmt.Errorf("failed to close result: %w", err))
	}
	if waitErr != nil {
		return waitErr
	}
	Logger.Debugf("closed cursor at row %d", c.results.CurrentRowNumber())
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *Cursor) checkScrollable() error {
	if c.closed {
		return ErrClosed
	}
	if !c.scrollable {
		return ErrForwardOnly
	}
	return nil
}

// lastDataRow returns the number of the last data row once the final row is known
func (c *Cursor) lastDataRow() (int, bool) {
	final := c.results.FinalRowNumber()
	if final == batch.NoFinalRow {
		return 0, false
	}
	return final - c.paramRows, true
}

func (c *Cursor) isEmpty() bool {
	last, known := c.lastDataRow()
	return known && last <= 0
}

// onRow returns whether the cursor is on a data row
func (c *Cursor) onRow() bool {
	row := c.results.CurrentRowNumber()
	if row <= 0 {
		return false
	}
	last, known := c.lastDataRow()
	return !known || row <= last
}

// readParamRow reads the parameter row and restores the position
func (c *Cursor) readParamRow(ctx context.Context) (batch.Row, error) {
	saved := c.results.CurrentRowNumber()
	if _, err := c.results.Absolute(ctx, -c.paramRows, 0); err != nil {
		return nil, err
	}
	row, err := c.results.CurrentRow(ctx)
	if _, restoreErr := c.results.Absolute(ctx, saved, 0); restoreErr != nil && err == nil {
		err = restoreErr
	}
	return row, err
}

// consumeParamRow moves a forward-only cursor that read every data row onto
// the parameter row
func (c *Cursor) consumeParamRow(ctx context.Context) (batch.Row, error) {
	last, known := c.lastDataRow()
	if !known || (last > 0 && c.results.CurrentRowNumber() <= last) {
		return nil, fmt.Errorf("%w: output parameters follow the last row", ErrNoRow)
	}
	if _, err := c.results.Absolute(ctx, last+1, 0); err != nil {
		return nil, err
	}
	return c.results.CurrentRow(ctx)
}
