package results

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/lib/engine"
	"github.com/ValentinKolb/dQL/lib/engine/memengine"
	"math"
	"testing"
	"time"
)

// countingEngine wraps the memory engine and counts the rows pulled from its results
type countingEngine struct {
	*memengine.MemEngine
	pulled int
}

func (e *countingEngine) Execute(ctx context.Context, query string, args []any) (engine.Result, error) {
	res, err := e.MemEngine.Execute(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return &countingResult{Result: res, engine: e}, nil
}

type countingResult struct {
	engine.Result
	engine *countingEngine
}

func (r *countingResult) Next(ctx context.Context) (engine.Row, bool, error) {
	row, ok, err := r.Result.Next(ctx)
	if ok {
		r.engine.pulled++
	}
	return row, ok, err
}

func newEngine() *countingEngine {
	return &countingEngine{MemEngine: memengine.New(memengine.Options{})}
}

func open(t *testing.T, r *Registry, eng engine.Engine, query string, fetchSize int) *Opened {
	t.Helper()
	o, err := r.Open(context.Background(), eng, query, nil, fetchSize)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", query, err)
	}
	return o
}

func checkBatch(t *testing.T, b *batch.Batch, begin, end int, isLast bool, final int) {
	t.Helper()
	if b.BeginRow != begin || b.EndRow != end || b.IsLast != isLast || b.FinalRow != final {
		t.Errorf("Expected [%d..%d] last=%v final=%d, got %s last=%v", begin, end, isLast, final, b, b.IsLast)
	}
}

func TestOpenAndFetch(t *testing.T) {
	r := New("test", 0)
	eng := newEngine()
	ctx := context.Background()

	o := open(t, r, eng, "SELECT * FROM SERIES(10)", 4)
	if o.ID == 0 {
		t.Fatal("Expected a registered result")
	}
	checkBatch(t, o.First, 1, 4, false, batch.NoFinalRow)

	// Lazy: the window plus one row of look ahead
	if eng.pulled != 5 {
		t.Errorf("Expected 5 rows pulled, got %d", eng.pulled)
	}

	tests := []struct {
		name     string
		begin    int
		size     int
		expBegin int
		expEnd   int
		isLast   bool
		final    int
	}{
		{"Middle", 5, 4, 5, 8, false, batch.NoFinalRow},
		{"Tail", 9, 4, 9, 10, true, 10},
		{"Backward", 2, 3, 2, 4, false, 10},
		{"ExactEnd", 7, 4, 7, 10, true, 10},
		{"PastEnd", 15, 4, 11, 10, true, 10},
		{"RowEnd", batch.RowEnd, 3, 8, 10, true, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := r.Fetch(ctx, o.ID, tt.begin, tt.size)
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			checkBatch(t, b, tt.expBegin, tt.expEnd, tt.isLast, tt.final)
			if b.Len() > 0 && b.Row(b.BeginRow)[0] != int64(b.BeginRow) {
				t.Errorf("Expected row value %d, got %v", b.BeginRow, b.Row(b.BeginRow)[0])
			}
		})
	}

	if err := r.Close(o.ID); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := r.Fetch(ctx, o.ID, 1, 1); !errors.Is(err, ErrUnknownResult) {
		t.Errorf("Expected ErrUnknownResult after close, got %v", err)
	}
	if err := r.Close(o.ID); !errors.Is(err, ErrUnknownResult) {
		t.Errorf("Expected ErrUnknownResult on second close, got %v", err)
	}
}

func TestRowEndDrains(t *testing.T) {
	r := New("test", 0)
	eng := newEngine()

	o := open(t, r, eng, "SELECT * FROM SERIES(50)", 5)
	b, err := r.Fetch(context.Background(), o.ID, batch.RowEnd, 5)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	checkBatch(t, b, 46, 50, true, 50)
	if eng.pulled != 50 {
		t.Errorf("Expected all 50 rows pulled, got %d", eng.pulled)
	}
}

func TestFetchBeyondMaxRow(t *testing.T) {
	r := New("test", 0)
	eng := newEngine()
	ctx := context.Background()

	o := open(t, r, eng, "SELECT * FROM SERIES(50)", 10)
	if _, err := r.Fetch(ctx, o.ID, 11, 1); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	b, err := r.Fetch(ctx, o.ID, math.MaxInt, 10)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	checkBatch(t, b, 51, 50, true, 50)
	if eng.pulled != 50 {
		t.Errorf("Expected all 50 rows pulled, got %d", eng.pulled)
	}

	// rows before the end stay reachable
	b, err = r.Fetch(ctx, o.ID, 12, 10)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	checkBatch(t, b, 12, 21, false, 50)
}

func TestSingleBatchNotRegistered(t *testing.T) {
	r := New("test", 0)
	eng := newEngine()

	o := open(t, r, eng, "SELECT * FROM SERIES(3)", 10)
	if o.ID != 0 {
		t.Errorf("Expected no registered result, got id %d", o.ID)
	}
	checkBatch(t, o.First, 1, 3, true, 3)

	o = open(t, r, eng, "SELECT * FROM SERIES(0)", 10)
	checkBatch(t, o.First, 1, 0, true, 0)
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d results", r.Len())
	}
}

func TestUpdateStatement(t *testing.T) {
	r := New("test", 0)
	eng := newEngine()

	o := open(t, r, eng, "CREATE TABLE t (id INT)", 10)
	if o.First != nil || len(o.Columns) != 0 {
		t.Errorf("Expected no rows for CREATE, got %+v", o)
	}
	o = open(t, r, eng, "INSERT INTO t VALUES (1), (2)", 10)
	if o.UpdateCount != 2 {
		t.Errorf("Expected update count 2, got %d", o.UpdateCount)
	}
}

func TestParamRows(t *testing.T) {
	r := New("test", 0)
	o := open(t, r, newEngine(), "CALL SERIES(5)", 2)
	if o.ParamRows != 1 {
		t.Errorf("Expected 1 parameter row, got %d", o.ParamRows)
	}
	b, err := r.Fetch(context.Background(), o.ID, batch.RowEnd, 2)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	// 5 rows plus the output parameter row
	checkBatch(t, b, 5, 6, true, 6)
}

func TestFetchSizeBounds(t *testing.T) {
	r := New("test", 3)
	o := open(t, r, newEngine(), "SELECT * FROM SERIES(20)", 0)
	checkBatch(t, o.First, 1, 3, false, batch.NoFinalRow)

	if _, err := r.Fetch(context.Background(), o.ID, 0, 1); err == nil {
		t.Error("Expected error for begin row 0")
	}
}

func TestCloseIdle(t *testing.T) {
	r := New("test", 0)
	eng := newEngine()

	idle := open(t, r, eng, "SELECT * FROM SERIES(10)", 2)
	active := open(t, r, eng, "SELECT * FROM SERIES(10)", 2)

	idleResult, _ := r.results.Load(idle.ID)
	idleResult.lastUsed.Store(time.Now().Add(-time.Hour).UnixNano())

	if n := r.CloseIdle(time.Minute); n != 1 {
		t.Errorf("Expected 1 released result, got %d", n)
	}
	if _, err := r.Fetch(context.Background(), active.ID, 3, 2); err != nil {
		t.Errorf("Active result was released: %v", err)
	}
	if _, err := r.Fetch(context.Background(), idle.ID, 3, 2); !errors.Is(err, ErrUnknownResult) {
		t.Errorf("Expected idle result to be released, got %v", err)
	}

	r.CloseAll()
	if r.Len() != 0 {
		t.Errorf("Expected empty registry after CloseAll, got %d", r.Len())
	}
}

func TestOpenError(t *testing.T) {
	r := New("test", 0)
	_, err := r.Open(context.Background(), newEngine(), "SELECT * FROM missing", nil, 1)
	if !errors.Is(err, engine.ErrUnknownTable) {
		t.Errorf("Expected ErrUnknownTable, got %v", err)
	}
}
