package driver

import (
	"context"
	"database/sql/driver"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/lib/cursor"
	"github.com/ValentinKolb/dQL/rpc/common"
	"io"
)

// rows adapts a forward-only cursor to driver.Rows. After each row the next
// batch is requested in the background once the cursor reaches the end of
// the rows it holds.
type rows struct {
	ctx     context.Context
	cur     *cursor.Cursor
	columns []common.ColumnInfo
}

func newRows(ctx context.Context, cur *cursor.Cursor, columns []common.ColumnInfo) *rows {
	return &rows{ctx: ctx, cur: cur, columns: columns}
}

func (r *rows) Columns() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Name
	}
	return names
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.columns[index].Type
}

func (r *rows) Close() error {
	return mapError(r.cur.Close(context.WithoutCancel(r.ctx)))
}

func (r *rows) Next(dest []driver.Value) error {
	ok, err := r.cur.Next(r.ctx)
	if err != nil {
		return mapError(err)
	}
	if !ok {
		return io.EOF
	}

	row, err := r.cur.Row(r.ctx)
	if err != nil {
		return mapError(err)
	}
	for i := range min(len(dest), len(row)) {
		dest[i] = row[i]
	}

	// a failed prefetch is retried by the next call
	if err := r.cur.Prefetch(r.ctx); err != nil {
		Logger.Debugf("prefetch failed: %v", err)
	}
	return nil
}

// emptyBatch is the first batch of a statement without rows
func emptyBatch() *batch.Batch {
	return batch.NewBatch(nil, 1, true)
}
