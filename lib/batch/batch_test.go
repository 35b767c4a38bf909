package batch

import (
	"context"
	"testing"
)

// TestNewBatch tests the row bounds of new batches
func TestNewBatch(t *testing.T) {
	tests := []struct {
		name      string
		rows      []Row
		beginRow  int
		isLast    bool
		wantEnd   int
		wantFinal int
	}{
		{"three rows", testRows(1, 3), 1, false, 3, NoFinalRow},
		{"last batch", testRows(11, 15), 11, true, 15, 15},
		{"empty last batch", nil, 21, true, 20, 20},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBatch(tc.rows, tc.beginRow, tc.isLast)
			if b.EndRow != tc.wantEnd {
				t.Errorf("Expected end row %d, got %d", tc.wantEnd, b.EndRow)
			}
			if b.FinalRow != tc.wantFinal {
				t.Errorf("Expected final row %d, got %d", tc.wantFinal, b.FinalRow)
			}
			if err := b.validate(); err != nil {
				t.Errorf("validate() failed: %v", err)
			}
		})
	}
}

// TestBatchCovers tests the row lookup of a batch
func TestBatchCovers(t *testing.T) {
	b := NewBatch(testRows(5, 9), 5, false)

	for row := 1; row <= 12; row++ {
		want := row >= 5 && row <= 9
		if got := b.Covers(row); got != want {
			t.Errorf("Covers(%d) = %v, want %v", row, got, want)
		}
		if want && b.Row(row)[0] != row {
			t.Errorf("Row(%d) returned %v", row, b.Row(row))
		}
	}

	empty := NewBatch(nil, 5, true)
	if empty.Covers(4) || empty.Covers(5) {
		t.Error("Empty batch should not cover any row")
	}
}

// TestBatchString tests the batch description used in logs and errors
func TestBatchString(t *testing.T) {
	if got := NewBatch(testRows(1, 2), 1, false).String(); got != "batch[1..2]" {
		t.Errorf("Unexpected string %q", got)
	}
	if got := NewBatch(testRows(3, 4), 3, true).String(); got != "batch[3..4 final=4]" {
		t.Errorf("Unexpected string %q", got)
	}
}

// TestFetcherFunc tests the function adapter
func TestFetcherFunc(t *testing.T) {
	var got int
	var f BatchFetcher = FetcherFunc(func(ctx context.Context, beginRow int) (*Batch, error) {
		got = beginRow
		return NewBatch(testRows(beginRow, beginRow), beginRow, true), nil
	})
	b, err := f.RequestBatch(context.Background(), 7)
	if err != nil || got != 7 || b.BeginRow != 7 {
		t.Errorf("RequestBatch(7) = %v, %v (called with %d)", b, err, got)
	}
}
