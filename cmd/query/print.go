package query

import (
	"context"
	"encoding/hex"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/lib/cursor"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// printer writes rows as aligned columns
type printer struct {
	w *tabwriter.Writer
}

func newPrinter(w io.Writer, columns []cursor.Column) *printer {
	p := &printer{w: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}

	header := make([]string, 0, len(columns)+1)
	header = append(header, "#")
	for _, c := range columns {
		header = append(header, c.Name)
	}
	fmt.Fprintln(p.w, strings.Join(header, "\t"))
	return p
}

// row prints the row the cursor is on
func (p *printer) row(number int, row batch.Row) {
	fields := make([]string, 0, len(row)+1)
	fields = append(fields, fmt.Sprint(number))
	for _, v := range row {
		fields = append(fields, formatValue(v))
	}
	fmt.Fprintln(p.w, strings.Join(fields, "\t"))
}

// rows advances the cursor and prints up to limit rows (0 prints all)
func (p *printer) rows(ctx context.Context, cur *cursor.Cursor, limit int) (int, error) {
	n := 0
	for limit <= 0 || n < limit {
		ok, err := cur.Next(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		row, err := cur.Row(ctx)
		if err != nil {
			return n, err
		}
		p.row(cur.RowNumber(), row)
		n++
	}
	return n, nil
}

func (p *printer) flush() error {
	return p.w.Flush()
}

// formatValue renders a column value
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return "0x" + hex.EncodeToString(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
