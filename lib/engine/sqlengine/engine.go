package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/engine"
	"github.com/lni/dragonboat/v4/logger"
	"strings"
	"time"
)

var Logger = logger.GetLogger("engine")

// Options configures the connection pool of the backend
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLEngine executes statements on a database/sql backend
type SQLEngine struct {
	driver string
	db     *sql.DB
}

// Open opens the backend with the given driver name (mysql, postgres, sqlite3) and dsn
// and checks that it is reachable
func Open(ctx context.Context, driverName, dsn string, opts Options) (*SQLEngine, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", driverName, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach %s backend: %w", driverName, err)
	}

	Logger.Infof("connected to %s backend", driverName)
	return &SQLEngine{driver: driverName, db: db}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine.Engine)
// --------------------------------------------------------------------------

func (e *SQLEngine) Execute(ctx context.Context, query string, args []any) (engine.Result, error) {
	if !returnsRows(query) {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = -1
		}
		return engine.NewUpdateResult(affected), nil
	}

	// The rows outlive the request that opened them
	rows, err := e.db.QueryContext(context.WithoutCancel(ctx), query, args...)
	if err != nil {
		return nil, err
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	columns := make([]engine.Column, len(types))
	binary := make([]bool, len(types))
	for i, ct := range types {
		columns[i] = engine.Column{Name: ct.Name(), Type: strings.ToUpper(ct.DatabaseTypeName())}
		binary[i] = isBinary(columns[i].Type)
	}

	return &rowsResult{rows: rows, columns: columns, binary: binary}, nil
}

func (e *SQLEngine) Close() error {
	return e.db.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

var rowKeywords = []string{"SELECT", "WITH", "SHOW", "CALL", "VALUES", "EXPLAIN", "PRAGMA", "DESCRIBE", "DESC", "TABLE"}

// returnsRows reports whether a statement is run as a query
func returnsRows(query string) bool {
	fields := strings.Fields(strings.TrimLeft(query, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	first := strings.ToUpper(fields[0])
	for _, kw := range rowKeywords {
		if first == kw {
			return true
		}
	}
	return false
}

func isBinary(typ string) bool {
	return strings.Contains(typ, "BLOB") || strings.Contains(typ, "BINARY") || typ == "BYTEA"
}

// rowsResult streams the rows of a query
type rowsResult struct {
	rows    *sql.Rows
	columns []engine.Column
	binary  []bool
}

func (r *rowsResult) Columns() []engine.Column {
	return r.columns
}

func (r *rowsResult) Next(ctx context.Context) (engine.Row, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !r.rows.Next() {
		return nil, false, r.rows.Err()
	}

	values := make([]any, len(r.columns))
	ptrs := make([]any, len(r.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, false, err
	}

	// Text arrives as bytes from most drivers
	for i, v := range values {
		if b, ok := v.([]byte); ok && !r.binary[i] {
			values[i] = string(b)
		}
	}
	return values, true, nil
}

func (r *rowsResult) ParamRows() int {
	return 0
}

func (r *rowsResult) UpdateCount() int64 {
	return -1
}

func (r *rowsResult) Close() error {
	return r.rows.Close()
}
