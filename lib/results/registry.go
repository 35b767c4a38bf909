package results

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/lib/engine"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("results")

const (
	// DefaultFetchSize is used when a client does not request a fetch size
	DefaultFetchSize = 100
	// DefaultMaxFetchSize bounds the fetch size a client may request
	DefaultMaxFetchSize = 10_000
)

// ErrUnknownResult is returned for result ids that are not (or no longer) open
var ErrUnknownResult = errors.New("unknown result")

// Opened describes a freshly executed statement
type Opened struct {
	// ID of the registered result, 0 if nothing had to be kept open
	ID uint64
	// Columns of the result, empty for statements without rows
	Columns []engine.Column
	// First batch of rows, nil for statements without rows
	First *batch.Batch
	// ParamRows is the number of trailing output parameter rows
	ParamRows int
	// UpdateCount of statements without rows
	UpdateCount int64
}

// openResult is a registered result with its buffered rows
type openResult struct {
	mu        sync.Mutex
	res       engine.Result
	rows      []batch.Row // rows[i] is row number i+1
	exhausted bool
	lastUsed  atomic.Int64 // unix nanos
}

// Registry holds the open results of one virtual database
type Registry struct {
	name         string
	results      *xsync.MapOf[uint64, *openResult]
	nextID       atomic.Uint64
	maxFetchSize int

	openedTotal *metrics.Counter
	reapedTotal *metrics.Counter
}

// New creates a registry, name labels its metrics
func New(name string, maxFetchSize int) *Registry {
	if maxFetchSize <= 0 {
		maxFetchSize = DefaultMaxFetchSize
	}
	r := &Registry{
		name:         name,
		results:      xsync.NewMapOf[uint64, *openResult](),
		maxFetchSize: maxFetchSize,
		openedTotal:  metrics.GetOrCreateCounter(fmt.Sprintf(`dql_results_opened_total{database=%q}`, name)),
		reapedTotal:  metrics.GetOrCreateCounter(fmt.Sprintf(`dql_results_reaped_total{database=%q}`, name)),
	}
	metrics.GetOrCreateGauge(fmt.Sprintf(`dql_results_open{database=%q}`, name), func() float64 {
		return float64(r.Len())
	})
	return r
}

// --------------------------------------------------------------------------
// Registry operations
// --------------------------------------------------------------------------

// Open executes a statement and returns its first batch of at most fetchSize rows.
// The result is registered unless its first batch is already the last one.
func (r *Registry) Open(ctx context.Context, eng engine.Engine, query string, args []any, fetchSize int) (*Opened, error) {
	res, err := eng.Execute(ctx, query, args)
	if err != nil {
		return nil, err
	}

	// Statements without rows
	if len(res.Columns()) == 0 {
		count := res.UpdateCount()
		_ = res.Close()
		return &Opened{UpdateCount: count}, nil
	}

	o := &openResult{res: res}
	o.touch()
	first, err := o.window(ctx, 1, r.fetchSize(fetchSize))
	if err != nil {
		_ = res.Close()
		return nil, err
	}

	opened := &Opened{
		Columns:     res.Columns(),
		First:       first,
		ParamRows:   res.ParamRows(),
		UpdateCount: res.UpdateCount(),
	}

	// Everything was sent, nothing to keep
	if first.IsLast {
		_ = res.Close()
		return opened, nil
	}

	opened.ID = r.nextID.Add(1)
	r.results.Store(opened.ID, o)
	r.openedTotal.Inc()
	Logger.Debugf("%s: opened result %d", r.name, opened.ID)
	return opened, nil
}

// Fetch returns the window of at most fetchSize rows starting at beginRow.
// A beginRow of batch.RowEnd returns the trailing window.
func (r *Registry) Fetch(ctx context.Context, id uint64, beginRow, fetchSize int) (*batch.Batch, error) {
	o, ok := r.results.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownResult, id)
	}
	if beginRow < 1 {
		return nil, fmt.Errorf("invalid begin row %d", beginRow)
	}
	o.touch()
	return o.window(ctx, beginRow, r.fetchSize(fetchSize))
}

// Close releases a result
func (r *Registry) Close(id uint64) error {
	o, ok := r.results.LoadAndDelete(id)
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownResult, id)
	}
	Logger.Debugf("%s: closed result %d", r.name, id)
	return o.close()
}

// CloseIdle releases every result not used for maxIdle and returns their number
func (r *Registry) CloseIdle(maxIdle time.Duration) int {
	deadline := time.Now().Add(-maxIdle).UnixNano()
	closed := 0
	r.results.Range(func(id uint64, o *openResult) bool {
		if o.lastUsed.Load() < deadline {
			if _, ok := r.results.LoadAndDelete(id); ok {
				_ = o.close()
				closed++
			}
		}
		return true
	})
	if closed > 0 {
		r.reapedTotal.Add(closed)
		Logger.Infof("%s: released %d idle results", r.name, closed)
	}
	return closed
}

// CloseAll releases every open result
func (r *Registry) CloseAll() {
	r.results.Range(func(id uint64, o *openResult) bool {
		if _, ok := r.results.LoadAndDelete(id); ok {
			_ = o.close()
		}
		return true
	})
}

// Len returns the number of open results
func (r *Registry) Len() int {
	return r.results.Size()
}

// fetchSize applies the default and the upper bound
func (r *Registry) fetchSize(size int) int {
	if size <= 0 {
		size = DefaultFetchSize
	}
	return min(size, r.maxFetchSize)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (o *openResult) touch() {
	o.lastUsed.Store(time.Now().UnixNano())
}

// fill buffers rows until n rows are buffered or the result is exhausted
func (o *openResult) fill(ctx context.Context, n int) error {
	for !o.exhausted && len(o.rows) < n {
		row, ok, err := o.res.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			o.exhausted = true
			break
		}
		o.rows = append(o.rows, batch.Row(row))
	}
	return nil
}

// window builds the batch of at most size rows starting at beginRow
func (o *openResult) window(ctx context.Context, beginRow, size int) (*batch.Batch, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.res == nil {
		return nil, ErrUnknownResult
	}

	if beginRow == batch.RowEnd {
		if err := o.fill(ctx, batch.RowEnd); err != nil {
			return nil, err
		}
		beginRow = max(len(o.rows)-size+1, 1)
	} else {
		// One row beyond the window tells whether the window is the last one,
		// a window reaching past math.MaxInt drains the result
		want := math.MaxInt
		if beginRow <= math.MaxInt-size {
			want = beginRow + size
		}
		if err := o.fill(ctx, want); err != nil {
			return nil, err
		}
	}

	total := len(o.rows)
	if beginRow > total {
		if !o.exhausted {
			return nil, fmt.Errorf("row %d is beyond the %d buffered rows", beginRow, total)
		}
		return batch.NewBatch(nil, total+1, true).WithFinalRow(total), nil
	}

	end := min(beginRow+size-1, total)
	isLast := o.exhausted && end == total
	b := batch.NewBatch(o.rows[beginRow-1:end:end], beginRow, isLast)
	if o.exhausted {
		b.WithFinalRow(total)
	}
	return b, nil
}

func (o *openResult) close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.res == nil {
		return nil
	}
	err := o.res.Close()
	o.res = nil
	o.rows = nil
	return err
}
