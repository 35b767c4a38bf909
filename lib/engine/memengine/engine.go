package memengine

import (
	"bufio"
	"context"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/engine"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"io"
	"slices"
	"strings"
	"sync"
)

var Logger = logger.GetLogger("engine")

// MaxSeries bounds the row count of the SERIES table function
const MaxSeries = 100_000_000

// Options configures a memory engine
type Options struct {
	// Language is the BCP 47 tag of the collation used to order strings, default "und"
	Language string
}

// table is an in-memory table, rows are never modified once appended
type table struct {
	name    string
	columns []engine.Column
	mu      sync.RWMutex
	rows    []engine.Row
}

// snapshot returns the rows visible at the time of the call
func (t *table) snapshot() []engine.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows[:len(t.rows):len(t.rows)]
}

func (t *table) columnIndex(name string) (int, error) {
	for i, c := range t.columns {
		if strings.EqualFold(c.Name, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown column %s in table %s", engine.ErrSyntax, name, t.name)
}

// MemEngine is an engine holding its tables in memory
type MemEngine struct {
	tables *xsync.MapOf[string, *table]
	lang   language.Tag
}

// New creates an empty memory engine
func New(opts Options) *MemEngine {
	lang := language.Und
	if opts.Language != "" {
		lang = language.Make(opts.Language)
	}
	return &MemEngine{
		tables: xsync.NewMapOf[string, *table](),
		lang:   lang,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine.Engine)
// --------------------------------------------------------------------------

func (e *MemEngine) Execute(ctx context.Context, query string, args []any) (engine.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stmt, err := parse(query)
	if err != nil {
		return nil, err
	}

	b := &binder{args: args}
	var res engine.Result
	switch {
	case stmt.Select != nil:
		res, err = e.execSelect(stmt.Select, b)
	case stmt.Insert != nil:
		res, err = e.execInsert(stmt.Insert, b)
	case stmt.Delete != nil:
		res, err = e.execDelete(stmt.Delete, b)
	case stmt.Create != nil:
		res, err = e.execCreate(stmt.Create)
	case stmt.Drop != nil:
		res, err = e.execDrop(stmt.Drop)
	case stmt.Call != nil:
		res, err = e.execCall(stmt.Call, b)
	default:
		err = fmt.Errorf("%w: unsupported statement", engine.ErrSyntax)
	}
	if err != nil {
		return nil, err
	}
	if err := b.done(); err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

func (e *MemEngine) Close() error {
	e.tables.Clear()
	return nil
}

// --------------------------------------------------------------------------
// Scripts
// --------------------------------------------------------------------------

// LoadScript executes the ';' separated statements read from r, typically a
// file of CREATE TABLE and INSERT statements seeding the database.
func (e *MemEngine) LoadScript(ctx context.Context, r io.Reader) (int, error) {
	statements, err := splitStatements(r)
	if err != nil {
		return 0, err
	}
	for i, stmt := range statements {
		res, err := e.Execute(ctx, stmt, nil)
		if err != nil {
			return i, fmt.Errorf("statement %d: %w", i+1, err)
		}
		_ = res.Close()
	}
	Logger.Infof("loaded %d statements", len(statements))
	return len(statements), nil
}

// splitStatements splits a script at semicolons outside of string literals,
// lines starting with -- are comments
func splitStatements(r io.Reader) ([]string, error) {
	var (
		statements []string
		current    strings.Builder
		quoted     bool
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !quoted && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for _, ch := range line {
			switch {
			case ch == '\'':
				quoted = !quoted
				current.WriteRune(ch)
			case ch == ';' && !quoted:
				if s := strings.TrimSpace(current.String()); s != "" {
					statements = append(statements, s)
				}
				current.Reset()
			default:
				current.WriteRune(ch)
			}
		}
		current.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		statements = append(statements, s)
	}
	return statements, nil
}

// --------------------------------------------------------------------------
// Statements
// --------------------------------------------------------------------------

func (e *MemEngine) lookup(name string) (*table, error) {
	t, ok := e.tables.Load(strings.ToLower(name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTable, name)
	}
	return t, nil
}

func (e *MemEngine) execCreate(stmt *astCreate) (engine.Result, error) {
	t := &table{name: stmt.Table}
	for _, def := range stmt.Columns {
		typ, err := columnType(def.Type)
		if err != nil {
			return nil, err
		}
		if _, err := t.columnIndex(def.Name); err == nil {
			return nil, fmt.Errorf("%w: duplicate column %s", engine.ErrSyntax, def.Name)
		}
		t.columns = append(t.columns, engine.Column{Name: def.Name, Type: typ})
	}
	if _, loaded := e.tables.LoadOrStore(strings.ToLower(stmt.Table), t); loaded {
		return nil, fmt.Errorf("table %s already exists", stmt.Table)
	}
	Logger.Debugf("created table %s with %d columns", stmt.Table, len(t.columns))
	return engine.NewUpdateResult(0), nil
}

func (e *MemEngine) execDrop(stmt *astDrop) (engine.Result, error) {
	if _, loaded := e.tables.LoadAndDelete(strings.ToLower(stmt.Table)); !loaded {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTable, stmt.Table)
	}
	return engine.NewUpdateResult(0), nil
}

func (e *MemEngine) execInsert(stmt *astInsert, b *binder) (engine.Result, error) {
	t, err := e.lookup(stmt.Table)
	if err != nil {
		return nil, err
	}

	// Map the statement columns to table columns
	targets := make([]int, len(t.columns))
	for i := range targets {
		targets[i] = i
	}
	if len(stmt.Columns) > 0 {
		targets = targets[:0]
		for _, name := range stmt.Columns {
			idx, err := t.columnIndex(name)
			if err != nil {
				return nil, err
			}
			targets = append(targets, idx)
		}
	}

	rows := make([]engine.Row, 0, len(stmt.Values))
	for _, tuple := range stmt.Values {
		if len(tuple.Values) != len(targets) {
			return nil, fmt.Errorf("%w: %d values for %d columns", engine.ErrSyntax, len(tuple.Values), len(targets))
		}
		row := make(engine.Row, len(t.columns))
		for i, v := range tuple.Values {
			val, err := b.value(v)
			if err != nil {
				return nil, err
			}
			col := t.columns[targets[i]]
			if row[targets[i]], err = coerce(val, col.Type); err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
		}
		rows = append(rows, row)
	}

	t.mu.Lock()
	t.rows = append(t.rows, rows...)
	t.mu.Unlock()

	return engine.NewUpdateResult(int64(len(rows))), nil
}

func (e *MemEngine) execDelete(stmt *astDelete, b *binder) (engine.Result, error) {
	t, err := e.lookup(stmt.Table)
	if err != nil {
		return nil, err
	}
	filter, err := e.compileWhere(t.columns, stmt.Where, b)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Open results keep reading the old slice
	kept := make([]engine.Row, 0, len(t.rows))
	for _, row := range t.rows {
		if !filter(row) {
			kept = append(kept, row)
		}
	}
	deleted := len(t.rows) - len(kept)
	t.rows = kept
	return engine.NewUpdateResult(int64(deleted)), nil
}

func (e *MemEngine) execSelect(stmt *astSelect, b *binder) (engine.Result, error) {
	var (
		columns []engine.Column
		source  func() (engine.Row, bool)
		rows    []engine.Row
	)

	// Resolve the source
	if stmt.From.Series != nil {
		n, err := b.nonNegative(stmt.From.Series, "SERIES count")
		if err != nil {
			return nil, err
		}
		if n > MaxSeries {
			return nil, fmt.Errorf("%w: SERIES count %d exceeds %d", engine.ErrArgs, n, MaxSeries)
		}
		columns = []engine.Column{{Name: "n", Type: TypeBigInt}}
		source = series(n)
	} else {
		t, err := e.lookup(stmt.From.Table)
		if err != nil {
			return nil, err
		}
		columns = t.columns
		rows = t.snapshot()
	}

	filter, err := e.compileWhere(columns, stmt.Where, b)
	if err != nil {
		return nil, err
	}

	limit := int64(-1)
	if stmt.Limit != nil {
		if limit, err = b.nonNegative(stmt.Limit, "LIMIT"); err != nil {
			return nil, err
		}
	}

	// Resolve the projection
	projection := make([]int, 0, len(columns))
	if len(stmt.Columns) == 0 {
		for i := range columns {
			projection = append(projection, i)
		}
	} else {
		for _, name := range stmt.Columns {
			idx, err := indexOf(columns, name)
			if err != nil {
				return nil, err
			}
			projection = append(projection, idx)
		}
	}

	// Ordering needs every row, everything else streams
	if stmt.OrderBy != nil {
		idx, err := indexOf(columns, stmt.OrderBy.Column)
		if err != nil {
			return nil, err
		}
		if source != nil {
			rows = drain(source)
			source = nil
		}
		rows = slices.Clone(rows)
		desc := strings.EqualFold(stmt.OrderBy.Direction, "DESC")
		coll := collate.New(e.lang)
		slices.SortStableFunc(rows, func(x, y engine.Row) int {
			c, _ := compare(x[idx], y[idx], coll)
			if desc {
				return -c
			}
			return c
		})
	}
	if source == nil {
		source = sliceSource(rows)
	}

	projected := make([]engine.Column, len(projection))
	for i, idx := range projection {
		projected[i] = columns[idx]
	}

	return &streamResult{
		columns: projected,
		next: func() (engine.Row, bool) {
			for {
				if limit == 0 {
					return nil, false
				}
				row, ok := source()
				if !ok {
					return nil, false
				}
				if !filter(row) {
					continue
				}
				if limit > 0 {
					limit--
				}
				return project(row, projection), true
			}
		},
	}, nil
}

// execCall runs the SERIES procedure: rows (i, running total) for i in 1..n
// followed by the output parameter row (n, total)
func (e *MemEngine) execCall(stmt *astCall, b *binder) (engine.Result, error) {
	n, err := b.nonNegative(stmt.Count, "SERIES count")
	if err != nil {
		return nil, err
	}
	if n > MaxSeries {
		return nil, fmt.Errorf("%w: SERIES count %d exceeds %d", engine.ErrArgs, n, MaxSeries)
	}

	var i, total int64
	done := false
	return &streamResult{
		columns: []engine.Column{{Name: "n", Type: TypeBigInt}, {Name: "total", Type: TypeBigInt}},
		next: func() (engine.Row, bool) {
			switch {
			case i < n:
				i++
				total += i
				return engine.Row{i, total}, true
			case !done:
				done = true
				return engine.Row{n, total}, true
			}
			return nil, false
		},
		paramRows: 1,
	}, nil
}

// compileWhere returns a predicate for the AND-ed conditions
func (e *MemEngine) compileWhere(columns []engine.Column, conditions []*astCondition, b *binder) (func(engine.Row) bool, error) {
	type compiled struct {
		idx     int
		op      string
		operand any
	}
	preds := make([]compiled, 0, len(conditions))
	for _, c := range conditions {
		idx, err := indexOf(columns, c.Column)
		if err != nil {
			return nil, err
		}
		operand, err := b.value(c.Value)
		if err != nil {
			return nil, err
		}
		preds = append(preds, compiled{idx: idx, op: c.Op, operand: operand})
	}
	if len(preds) == 0 {
		return func(engine.Row) bool { return true }, nil
	}

	coll := collate.New(e.lang)
	return func(row engine.Row) bool {
		for _, p := range preds {
			if !matches(row[p.idx], p.op, p.operand, coll) {
				return false
			}
		}
		return true
	}, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func indexOf(columns []engine.Column, name string) (int, error) {
	for i, c := range columns {
		if strings.EqualFold(c.Name, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown column %s", engine.ErrSyntax, name)
}

func project(row engine.Row, projection []int) engine.Row {
	if len(projection) == len(row) {
		identity := true
		for i, idx := range projection {
			if i != idx {
				identity = false
				break
			}
		}
		if identity {
			return row
		}
	}
	out := make(engine.Row, len(projection))
	for i, idx := range projection {
		out[i] = row[idx]
	}
	return out
}

// series generates the rows 1..n lazily
func series(n int64) func() (engine.Row, bool) {
	var i int64
	return func() (engine.Row, bool) {
		if i >= n {
			return nil, false
		}
		i++
		return engine.Row{i}, true
	}
}

func sliceSource(rows []engine.Row) func() (engine.Row, bool) {
	pos := 0
	return func() (engine.Row, bool) {
		if pos >= len(rows) {
			return nil, false
		}
		pos++
		return rows[pos-1], true
	}
}

func drain(source func() (engine.Row, bool)) []engine.Row {
	var rows []engine.Row
	for row, ok := source(); ok; row, ok = source() {
		rows = append(rows, row)
	}
	return rows
}

// streamResult is a result producing its rows on demand
type streamResult struct {
	columns   []engine.Column
	next      func() (engine.Row, bool)
	paramRows int
	closed    bool
}

func (r *streamResult) Columns() []engine.Column {
	return r.columns
}

func (r *streamResult) Next(ctx context.Context) (engine.Row, bool, error) {
	if r.closed {
		return nil, false, engine.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	row, ok := r.next()
	return row, ok, nil
}

func (r *streamResult) ParamRows() int {
	return r.paramRows
}

func (r *streamResult) UpdateCount() int64 {
	return -1
}

func (r *streamResult) Close() error {
	r.closed = true
	return nil
}
