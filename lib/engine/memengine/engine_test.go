package memengine

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dQL/lib/engine"
	"reflect"
	"strings"
	"testing"
	"time"
)

// collect executes a statement and returns all its rows
func collect(t *testing.T, e *MemEngine, query string, args ...any) []engine.Row {
	t.Helper()
	res, err := e.Execute(context.Background(), query, args)
	if err != nil {
		t.Fatalf("Execute(%q) failed: %v", query, err)
	}
	defer res.Close()

	var rows []engine.Row
	for {
		row, ok, err := res.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

func mustExec(t *testing.T, e *MemEngine, query string, args ...any) engine.Result {
	t.Helper()
	res, err := e.Execute(context.Background(), query, args)
	if err != nil {
		t.Fatalf("Execute(%q) failed: %v", query, err)
	}
	return res
}

func newPeople(t *testing.T) *MemEngine {
	t.Helper()
	e := New(Options{Language: "de"})
	mustExec(t, e, "CREATE TABLE people (id INT, name VARCHAR(20), score DOUBLE, active BOOLEAN)")
	res := mustExec(t, e, "INSERT INTO people VALUES (1, 'Zoe', 1.5, true), (2, 'Ärne', 2, false), (3, 'adam', NULL, true)")
	if res.UpdateCount() != 3 {
		t.Fatalf("Expected update count 3, got %d", res.UpdateCount())
	}
	mustExec(t, e, "insert into people (id, name) values (?, ?)", 4, "Bob")
	return e
}

func TestSelect(t *testing.T) {
	e := newPeople(t)

	tests := []struct {
		name     string
		query    string
		args     []any
		expected []engine.Row
	}{
		{
			name:     "Projection",
			query:    "SELECT name FROM people WHERE id <= 2",
			expected: []engine.Row{{"Zoe"}, {"Ärne"}},
		},
		{
			name:     "CollatedOrder",
			query:    "SELECT name FROM people ORDER BY name",
			expected: []engine.Row{{"adam"}, {"Ärne"}, {"Bob"}, {"Zoe"}},
		},
		{
			name:     "DescendingLimit",
			query:    "SELECT id FROM people ORDER BY id DESC LIMIT 2",
			expected: []engine.Row{{int64(4)}, {int64(3)}},
		},
		{
			name:     "Placeholders",
			query:    "SELECT id FROM people WHERE active = ? AND id > ?",
			args:     []any{true, 1},
			expected: []engine.Row{{int64(3)}},
		},
		{
			name:     "NullNeverMatches",
			query:    "SELECT id FROM people WHERE score >= 0",
			expected: []engine.Row{{int64(1)}, {int64(2)}},
		},
		{
			name:     "NullsFirst",
			query:    "SELECT id FROM people ORDER BY score LIMIT 2",
			expected: []engine.Row{{int64(3)}, {int64(4)}},
		},
		{
			name:     "EscapedQuote",
			query:    "SELECT id FROM people WHERE name = 'O''Neil'",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := collect(t, e, tt.query, tt.args...)
			if !reflect.DeepEqual(rows, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, rows)
			}
		})
	}
}

func TestColumns(t *testing.T) {
	e := newPeople(t)
	res := mustExec(t, e, "SELECT score, name FROM people")
	expected := []engine.Column{{Name: "score", Type: TypeDouble}, {Name: "name", Type: TypeVarchar}}
	if !reflect.DeepEqual(res.Columns(), expected) {
		t.Errorf("Expected columns %v, got %v", expected, res.Columns())
	}
	if res.ParamRows() != 0 {
		t.Errorf("Expected no parameter rows")
	}
}

func TestSeries(t *testing.T) {
	e := New(Options{})

	rows := collect(t, e, "SELECT * FROM SERIES(5) WHERE n > 1 LIMIT 3")
	expected := []engine.Row{{int64(2)}, {int64(3)}, {int64(4)}}
	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("Expected %v, got %v", expected, rows)
	}

	rows = collect(t, e, "SELECT n FROM series(?) ORDER BY n DESC", 3)
	expected = []engine.Row{{int64(3)}, {int64(2)}, {int64(1)}}
	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("Expected %v, got %v", expected, rows)
	}

	if rows := collect(t, e, "SELECT * FROM SERIES(0)"); len(rows) != 0 {
		t.Errorf("Expected empty series, got %v", rows)
	}
}

func TestCallSeries(t *testing.T) {
	e := New(Options{})
	res := mustExec(t, e, "CALL SERIES(4)")
	if res.ParamRows() != 1 {
		t.Fatalf("Expected 1 parameter row, got %d", res.ParamRows())
	}
	rows := collect(t, e, "CALL SERIES(4)")
	expected := []engine.Row{
		{int64(1), int64(1)}, {int64(2), int64(3)}, {int64(3), int64(6)}, {int64(4), int64(10)},
		{int64(4), int64(10)}, // output parameters
	}
	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("Expected %v, got %v", expected, rows)
	}
}

func TestDeleteAndSnapshot(t *testing.T) {
	e := newPeople(t)

	// An open result keeps its snapshot
	open := mustExec(t, e, "SELECT id FROM people")
	defer open.Close()

	res := mustExec(t, e, "DELETE FROM people WHERE active = false")
	if res.UpdateCount() != 1 {
		t.Errorf("Expected 1 deleted row, got %d", res.UpdateCount())
	}
	mustExec(t, e, "INSERT INTO people (id) VALUES (5)")

	count := 0
	for {
		_, ok, err := open.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 4 {
		t.Errorf("Expected snapshot of 4 rows, got %d", count)
	}

	if rows := collect(t, e, "SELECT id FROM people"); len(rows) != 4 {
		t.Errorf("Expected 4 rows after delete and insert, got %d", len(rows))
	}
}

func TestTypes(t *testing.T) {
	e := New(Options{})
	mustExec(t, e, "CREATE TABLE events (at TIMESTAMP, payload BLOB, ratio FLOAT)")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	mustExec(t, e, "INSERT INTO events VALUES (?, ?, ?)", at, []byte{1, 2}, 3)

	rows := collect(t, e, "SELECT * FROM events")
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if got := rows[0][0].(time.Time); !got.Equal(at) || got.Location() != time.UTC {
		t.Errorf("Expected %v in UTC, got %v", at, got)
	}
	if got := rows[0][2]; got != float64(3) {
		t.Errorf("Expected integer coerced to 3.0, got %v (%T)", got, got)
	}
}

func TestErrors(t *testing.T) {
	e := newPeople(t)

	tests := []struct {
		name  string
		query string
		args  []any
		err   error
	}{
		{"Syntax", "SELEKT * FROM people", nil, engine.ErrSyntax},
		{"Empty", "  ;", nil, engine.ErrSyntax},
		{"UnknownTable", "SELECT * FROM nope", nil, engine.ErrUnknownTable},
		{"UnknownColumn", "SELECT nope FROM people", nil, engine.ErrSyntax},
		{"MissingArgument", "SELECT * FROM people WHERE id = ?", nil, engine.ErrArgs},
		{"ExtraArgument", "SELECT * FROM people", []any{1}, engine.ErrArgs},
		{"TypeMismatch", "INSERT INTO people (id) VALUES ('x')", nil, engine.ErrArgs},
		{"NegativeLimit", "SELECT * FROM people LIMIT -1", nil, engine.ErrArgs},
		{"ArityMismatch", "INSERT INTO people VALUES (1)", nil, engine.ErrSyntax},
		{"DropUnknown", "DROP TABLE nope", nil, engine.ErrUnknownTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Execute(context.Background(), tt.query, tt.args)
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected %v, got %v", tt.err, err)
			}
		})
	}
}

func TestCancelledContext(t *testing.T) {
	e := New(Options{})
	res := mustExec(t, e, "SELECT * FROM SERIES(10)")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := res.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	_ = res.Close()
	if _, _, err := res.Next(context.Background()); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestLoadScript(t *testing.T) {
	script := `
-- seed data
CREATE TABLE notes (id INT, body TEXT);
INSERT INTO notes VALUES (1, 'a;b'), (2, 'it''s');
INSERT INTO notes VALUES (3, 'c')
`
	e := New(Options{})
	n, err := e.LoadScript(context.Background(), strings.NewReader(script))
	if err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 statements, got %d", n)
	}
	rows := collect(t, e, "SELECT body FROM notes ORDER BY id")
	expected := []engine.Row{{"a;b"}, {"it's"}, {"c"}}
	if !reflect.DeepEqual(rows, expected) {
		t.Errorf("Expected %v, got %v", expected, rows)
	}
}
