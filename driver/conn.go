package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"github.com/ValentinKolb/dQL/lib/cursor"
	"github.com/ValentinKolb/dQL/rpc/client"
	"github.com/ValentinKolb/dQL/rpc/common"
)

// Conn is a connection to one virtual database. It implements driver.Conn
// with the context aware extensions of database/sql.
type Conn struct {
	session *client.Session
	cfg     *Config
	closed  bool
}

// CursorOptions configures a cursor opened with QueryCursor
type CursorOptions struct {
	// Scrollable enables movements besides Next
	Scrollable bool
	// FetchSize overrides the fetch size of the dsn
	FetchSize int
	// MaxCachedBatches overrides the cached batches of the dsn (scrollable cursors only)
	MaxCachedBatches int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see database/sql/driver)
// --------------------------------------------------------------------------

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	return &stmt{conn: c, query: query}, nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	return nil, ErrTxNotSupported
}

func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return nil, ErrTxNotSupported
}

func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.session.Close()
}

// IsValid reports whether the connection may be reused by the pool
func (c *Conn) IsValid() bool {
	return !c.closed
}

func (c *Conn) Ping(ctx context.Context) error {
	if c.closed {
		return driver.ErrBadConn
	}
	return c.session.Ping(ctx)
}

func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	values, err := positional(args)
	if err != nil {
		return nil, err
	}

	res, err := c.session.Execute(ctx, query, values, c.cfg.FetchSize)
	if err != nil {
		return nil, err
	}
	if res.HasRows() {
		// the rows are not read, release them right away
		if err := c.session.CloseResult(ctx, res.ID); err != nil {
			Logger.Warningf("failed to close result %d: %v", res.ID, err)
		}
		return result{affected: 0}, nil
	}
	return result{affected: max(res.UpdateCount, 0)}, nil
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	values, err := positional(args)
	if err != nil {
		return nil, err
	}

	cur, columns, err := c.open(ctx, query, values, CursorOptions{})
	if err != nil {
		return nil, err
	}
	return newRows(ctx, cur, columns), nil
}

// --------------------------------------------------------------------------
// Cursors
// --------------------------------------------------------------------------

// QueryCursor runs a query and returns a cursor over its rows. Statements
// without rows return a cursor over an empty result. The cursor must be
// closed by the caller.
func (c *Conn) QueryCursor(ctx context.Context, query string, args []any, opts CursorOptions) (*cursor.Cursor, error) {
	if c.closed {
		return nil, ErrConnClosed
	}
	cur, _, err := c.open(ctx, query, args, opts)
	return cur, err
}

// QueryCursor runs a query on a connection of a sql.DB and returns a cursor
// over its rows. The session behind the cursor is safe for concurrent use,
// so the cursor stays usable after conn is returned to the pool.
//
// Usage:
//
//	conn, _ := db.Conn(ctx)
//	defer conn.Close()
//	cur, err := driver.QueryCursor(ctx, conn, "SELECT * FROM items", driver.CursorOptions{Scrollable: true})
//	defer cur.Close(ctx)
//	ok, err := cur.Absolute(ctx, -1)
func QueryCursor(ctx context.Context, conn *sql.Conn, query string, opts CursorOptions, args ...any) (*cursor.Cursor, error) {
	var cur *cursor.Cursor
	err := conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*Conn)
		if !ok {
			return client.NewSQLError(common.SQLStateNotImplemented, "connection of type %T does not support cursors", driverConn)
		}
		var err error
		cur, err = c.QueryCursor(ctx, query, args, opts)
		return err
	})
	return cur, err
}

// open executes a query and wraps the first batch in a cursor
func (c *Conn) open(ctx context.Context, query string, args []any, opts CursorOptions) (*cursor.Cursor, []common.ColumnInfo, error) {
	fetchSize := c.cfg.FetchSize
	if opts.FetchSize > 0 {
		fetchSize = opts.FetchSize
	}
	cached := c.cfg.CachedBatches
	if opts.MaxCachedBatches > 0 {
		cached = opts.MaxCachedBatches
	}

	res, err := c.session.Execute(ctx, query, args, fetchSize)
	if err != nil {
		return nil, nil, err
	}

	first := res.First
	if !res.HasRows() {
		first = emptyBatch()
	}

	columns := make([]cursor.Column, len(res.Columns))
	for i, col := range res.Columns {
		columns[i] = cursor.Column{Name: col.Name, Type: col.Type}
	}

	session, id := c.session, res.ID
	cur, err := cursor.New(session.Fetcher(id, fetchSize), first, columns, cursor.Options{
		Scrollable:       opts.Scrollable,
		MaxCachedBatches: cached,
		ParameterRows:    res.ParamRows,
		Closer: func(ctx context.Context) error {
			return session.CloseResult(ctx, id)
		},
	})
	if err != nil {
		_ = session.CloseResult(ctx, id)
		return nil, nil, mapError(err)
	}
	return cur, res.Columns, nil
}

// --------------------------------------------------------------------------
// Statement and result
// --------------------------------------------------------------------------

// stmt is a statement bound to a connection, it is sent to the server on every execution
type stmt struct {
	conn  *Conn
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

// result is the result of a statement without rows
type result struct {
	affected int64
}

func (r result) LastInsertId() (int64, error) {
	return 0, client.NewSQLError(common.SQLStateNotImplemented, "last insert id is not supported")
}

func (r result) RowsAffected() (int64, error) {
	return r.affected, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// positional converts arguments, only positional arguments are supported
func positional(args []driver.NamedValue) ([]any, error) {
	values := make([]any, len(args))
	for i, arg := range args {
		if arg.Name != "" {
			return nil, ErrNamedArgs
		}
		values[i] = arg.Value
	}
	return values, nil
}

func named(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}
