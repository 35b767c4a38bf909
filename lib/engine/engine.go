package engine

import (
	"context"
	"errors"
)

var (
	// ErrSyntax is returned for statements the engine cannot parse
	ErrSyntax = errors.New("syntax error")
	// ErrUnknownTable is returned for statements on a table that does not exist
	ErrUnknownTable = errors.New("table not found")
	// ErrArgs is returned if the arguments do not match the placeholders of a statement
	ErrArgs = errors.New("invalid statement arguments")
	// ErrClosed is returned when a closed result or engine is used
	ErrClosed = errors.New("closed")
)

// Column describes a column of a result
type Column struct {
	Name string
	Type string // database type name, e.g. BIGINT
}

// Row holds the values of one row, in column order
type Row []any

// Result is the forward-only row stream of an executed statement
type Result interface {
	// Columns returns the columns of the result, empty for statements without rows
	Columns() []Column
	// Next returns the next row, ok is false once the result is exhausted
	Next(ctx context.Context) (row Row, ok bool, err error)
	// ParamRows returns the number of trailing output parameter rows (0 or 1)
	ParamRows() int
	// UpdateCount returns the number of rows affected by the statement
	UpdateCount() int64
	// Close releases the resources of the result
	Close() error
}

// Engine executes statements
type Engine interface {
	// Execute runs a statement with positional arguments
	Execute(ctx context.Context, query string, args []any) (Result, error)
	// Close releases the engine
	Close() error
}

// --------------------------------------------------------------------------
// Helper Result implementations
// --------------------------------------------------------------------------

// NewUpdateResult returns a result without rows
func NewUpdateResult(updateCount int64) Result {
	return &sliceResult{updateCount: updateCount}
}

// NewSliceResult returns a result over the given rows
func NewSliceResult(columns []Column, rows []Row, paramRows int) Result {
	return &sliceResult{columns: columns, rows: rows, paramRows: paramRows}
}

type sliceResult struct {
	columns     []Column
	rows        []Row
	pos         int
	paramRows   int
	updateCount int64
	closed      bool
}

func (r *sliceResult) Columns() []Column {
	return r.columns
}

func (r *sliceResult) Next(ctx context.Context) (Row, bool, error) {
	if r.closed {
		return nil, false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if r.pos >= len(r.rows) {
		return nil, false, nil
	}
	row := r.rows[r.pos]
	r.pos++
	return row, true, nil
}

func (r *sliceResult) ParamRows() int {
	return r.paramRows
}

func (r *sliceResult) UpdateCount() int64 {
	return r.updateCount
}

func (r *sliceResult) Close() error {
	r.closed = true
	r.rows = nil
	return nil
}
