package client

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"testing"
)

// fakeTransport answers requests in process with a handler
type fakeTransport struct {
	serializer serializer.IRPCSerializer
	handler    func(shardId uint64, req *common.Message) *common.Message
	sendErr    error
	shards     []uint64
	closed     bool
}

func (f *fakeTransport) Connect(config common.ClientConfig) error { return nil }

func (f *fakeTransport) Send(ctx context.Context, shardId uint64, req []byte) ([]byte, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.shards = append(f.shards, shardId)
	var msg common.Message
	if err := f.serializer.Deserialize(req, &msg); err != nil {
		return nil, err
	}
	return f.serializer.Serialize(*f.handler(shardId, &msg))
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// rowsFrom returns the wire rows begin..end with one int column
func rowsFrom(begin, end int) [][]common.Value {
	var rows [][]common.Value
	for i := begin; i <= end; i++ {
		rows = append(rows, []common.Value{common.MustValueOf(i)})
	}
	return rows
}

// tableHandler serves a single result of total rows
func tableHandler(total int) func(uint64, *common.Message) *common.Message {
	return func(shardId uint64, req *common.Message) *common.Message {
		switch req.MsgType {
		case common.MsgTExecute:
			end := min(int(req.FetchSize), total)
			return common.NewExecuteResponse(1, []common.ColumnInfo{{Name: "n", Type: "INT"}},
				rowsFrom(1, end), end == total, common.NoFinalRow, 0, 0)
		case common.MsgTFetch:
			if req.ResultID != 1 {
				return common.NewErrorResponse(common.SQLStateInvalidCursor, "unknown result")
			}
			begin := int(req.BeginRow)
			if begin == batch.RowEnd {
				begin = max(total-int(req.FetchSize)+1, 1)
			}
			end := min(begin+int(req.FetchSize)-1, total)
			return common.NewFetchResponse(rowsFrom(begin, end), int64(begin), end >= total, int64(total))
		case common.MsgTClose:
			return common.NewCloseResponse(nil)
		case common.MsgTPing:
			return common.NewPingResponse()
		}
		return common.NewErrorResponse("", "unexpected request")
	}
}

func newTestSession(t *testing.T, handler func(uint64, *common.Message) *common.Message) (*Session, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{serializer: serializer.NewBinarySerializer(), handler: handler}
	s, err := NewSession("shop", common.ClientConfig{}, ft, ft.serializer)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s, ft
}

func TestExecuteAndFetch(t *testing.T) {
	s, ft := newTestSession(t, tableHandler(10))
	ctx := context.Background()

	res, err := s.Execute(ctx, "SELECT * FROM t", nil, 4)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.HasRows() || res.ID != 1 {
		t.Fatalf("Expected open result 1 with rows, got %+v", res)
	}
	if res.First.BeginRow != 1 || res.First.EndRow != 4 || res.First.IsLast {
		t.Errorf("Unexpected first batch %s", res.First)
	}
	if ft.shards[0] != common.DatabaseShardID("shop") {
		t.Errorf("Expected shard of database shop, got %d", ft.shards[0])
	}

	b, err := s.Fetch(ctx, res.ID, 9, 4)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if b.BeginRow != 9 || b.EndRow != 10 || !b.IsLast || b.FinalRow != 10 {
		t.Errorf("Unexpected batch %s", b)
	}
	if b.Row(10)[0] != int64(10) {
		t.Errorf("Expected row value 10, got %v", b.Row(10)[0])
	}

	if err := s.CloseResult(ctx, res.ID); err != nil {
		t.Errorf("CloseResult failed: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if err := s.Close(); err != nil || !ft.closed {
		t.Errorf("Close did not close the transport")
	}
}

func TestFetcherDrivesBatchResults(t *testing.T) {
	s, _ := newTestSession(t, tableHandler(10))
	ctx := context.Background()

	res, err := s.Execute(ctx, "SELECT * FROM t", nil, 3)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	rs, err := batch.NewBatchResults(s.Fetcher(res.ID, 3), res.First, batch.Options{Scrollable: true})
	if err != nil {
		t.Fatalf("NewBatchResults failed: %v", err)
	}

	ok, err := rs.Absolute(ctx, -1, 0)
	if err != nil || !ok {
		t.Fatalf("Absolute(-1) = %v, %v", ok, err)
	}
	if rs.CurrentRowNumber() != 10 || rs.FinalRowNumber() != 10 {
		t.Errorf("Expected row 10 of 10, got %d of %d", rs.CurrentRowNumber(), rs.FinalRowNumber())
	}
	row, err := rs.CurrentRow(ctx)
	if err != nil || row[0] != int64(10) {
		t.Errorf("Expected value 10, got %v (%v)", row, err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		handler   func(uint64, *common.Message) *common.Message
		sendErr   error
		wantState string
	}{
		{
			name: "ServerState",
			handler: func(uint64, *common.Message) *common.Message {
				return common.NewErrorResponse(common.SQLStateSyntax, "bad query")
			},
			wantState: common.SQLStateSyntax,
		},
		{
			name: "DefaultState",
			handler: func(uint64, *common.Message) *common.Message {
				return common.NewErrorResponse("", "boom")
			},
			wantState: common.SQLStateGeneral,
		},
		{
			name:      "TransportFailure",
			sendErr:   errors.New("connection refused"),
			wantState: common.SQLStateConnectionFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ft := newTestSession(t, tt.handler)
			ft.sendErr = tt.sendErr

			_, err := s.Execute(context.Background(), "SELECT", nil, 1)
			var sqlErr *SQLError
			if !errors.As(err, &sqlErr) {
				t.Fatalf("Expected *SQLError, got %v", err)
			}
			if sqlErr.SQLState != tt.wantState {
				t.Errorf("Expected state %s, got %s", tt.wantState, sqlErr.SQLState)
			}
			if tt.sendErr != nil && !errors.Is(err, tt.sendErr) {
				t.Errorf("Expected error to wrap %v", tt.sendErr)
			}
		})
	}
}

func TestUnexpectedResponseType(t *testing.T) {
	s, _ := newTestSession(t, func(uint64, *common.Message) *common.Message {
		return common.NewPingResponse()
	})
	if _, err := s.Fetch(context.Background(), 1, 1, 1); err == nil {
		t.Error("Expected error for mismatched response type")
	}
}

func TestInvalidArgument(t *testing.T) {
	s, _ := newTestSession(t, tableHandler(1))
	_, err := s.Execute(context.Background(), "SELECT", []any{struct{}{}}, 1)
	if !errors.Is(err, &SQLError{SQLState: common.SQLStateInvalidParameter}) {
		t.Errorf("Expected invalid parameter error, got %v", err)
	}
}

func TestSQLErrorString(t *testing.T) {
	err := NewSQLError(common.SQLStateInvalidCursor, "cursor %s", "closed")
	if got := fmt.Sprint(err); got != "[24000] cursor closed" {
		t.Errorf("Unexpected error string %q", got)
	}
}

func TestWrapSQLError(t *testing.T) {
	cause := errors.New("not on a row")
	err := WrapSQLError(common.SQLStateInvalidCursor, cause)
	if !errors.Is(err, cause) {
		t.Error("Expected the cause to be reachable")
	}
	if !errors.Is(err, &SQLError{SQLState: common.SQLStateInvalidCursor}) {
		t.Error("Expected a match by SQLSTATE")
	}
	if err.Msg != cause.Error() {
		t.Errorf("Expected message %q, got %q", cause.Error(), err.Msg)
	}
}
