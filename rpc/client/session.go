package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"github.com/ValentinKolb/dQL/rpc/transport"
)

// Result is the answer to an executed statement
type Result struct {
	// ID of the open server side result, 0 if the server holds nothing
	ID uint64
	// Columns of the result set, empty for statements without rows
	Columns []common.ColumnInfo
	// First batch of rows, nil for statements without rows
	First *batch.Batch
	// ParamRows is the number of trailing output parameter rows
	ParamRows int
	// UpdateCount is the number of affected rows for statements without rows
	UpdateCount int64
}

// HasRows returns whether the statement produced a result set
func (r *Result) HasRows() bool {
	return len(r.Columns) > 0
}

// NewSession creates a session for the virtual database with the given name
// The function connects the transport and returns a session and an error
//
// Usage:
//
//	s, err := client.NewSession("shop", config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	res, err := s.Execute(ctx, "SELECT * FROM items", nil, 100)
func NewSession(
	database string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*Session, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &Session{
		rpcClientAdapter: rpcClientAdapter{
			shardId:    common.DatabaseShardID(database),
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
		database: database,
	}, nil
}

// Session is a connection to one virtual database of a query server.
// It is safe for concurrent use.
type Session struct {
	rpcClientAdapter
	database string
}

// Database returns the name of the virtual database
func (s *Session) Database() string {
	return s.database
}

// Execute runs a statement and returns its first batch of at most fetchSize rows
func (s *Session) Execute(ctx context.Context, query string, args []any, fetchSize int) (*Result, error) {
	values, err := common.ValuesOf(args)
	if err != nil {
		return nil, NewSQLError(common.SQLStateInvalidParameter, "%v", err)
	}

	req := common.NewExecuteRequest(query, values, int64(fetchSize))
	resp, err := invokeRPCRequest(ctx, s.shardId, req, s.transport, s.serializer)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:          resp.ResultID,
		Columns:     resp.Columns,
		ParamRows:   int(resp.ParamRows),
		UpdateCount: resp.UpdateCount,
	}
	if res.HasRows() {
		res.First = toBatch(resp)
	}
	Logger.Debugf("executed on %s: result %d with %d columns", s.database, res.ID, len(res.Columns))
	return res, nil
}

// Fetch requests at most fetchSize rows of an open result starting at beginRow.
// A beginRow of batch.RowEnd requests the trailing rows of the result.
func (s *Session) Fetch(ctx context.Context, resultID uint64, beginRow, fetchSize int) (*batch.Batch, error) {
	req := common.NewFetchRequest(resultID, int64(beginRow), int64(fetchSize))
	resp, err := invokeRPCRequest(ctx, s.shardId, req, s.transport, s.serializer)
	if err != nil {
		return nil, err
	}
	return toBatch(resp), nil
}

// CloseResult releases an open result on the server
func (s *Session) CloseResult(ctx context.Context, resultID uint64) error {
	if resultID == 0 {
		return nil
	}
	req := common.NewCloseRequest(resultID)
	_, err := invokeRPCRequest(ctx, s.shardId, req, s.transport, s.serializer)
	return err
}

// Ping checks that the server is reachable and serves the database
func (s *Session) Ping(ctx context.Context) error {
	_, err := invokeRPCRequest(ctx, s.shardId, common.NewPingRequest(), s.transport, s.serializer)
	return err
}

// Fetcher returns a batch source for an open result
func (s *Session) Fetcher(resultID uint64, fetchSize int) batch.BatchFetcher {
	return batch.FetcherFunc(func(ctx context.Context, beginRow int) (*batch.Batch, error) {
		if resultID == 0 {
			return nil, fmt.Errorf("result is not held by the server")
		}
		return s.Fetch(ctx, resultID, beginRow, fetchSize)
	})
}

// Close closes the underlying transport
func (s *Session) Close() error {
	return s.transport.Close()
}
