package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/lib/engine"
	"github.com/ValentinKolb/dQL/lib/engine/sqlengine"
	"github.com/ValentinKolb/dQL/lib/results"
	"github.com/ValentinKolb/dQL/rpc/common"
)

func NewQueryServerAdapter() IRPCServerAdapter {
	return &queryServerAdapterImpl{}
}

type queryServerAdapterImpl struct{}

func (adapter *queryServerAdapterImpl) Handle(ctx context.Context, req *common.Message, db *VirtualDB) *common.Message {
	// Check for nil database
	if db == nil {
		return common.NewErrorResponse(common.SQLStateGeneral, "handler: database is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTExecute:
		return adapter.execute(ctx, req, db)
	case common.MsgTFetch:
		b, err := db.Results.Fetch(ctx, req.ResultID, int(req.BeginRow), int(req.FetchSize))
		if err != nil {
			return errorResponse(err)
		}
		rows, err := toValues(b.Rows)
		if err != nil {
			return errorResponse(err)
		}
		return common.NewFetchResponse(rows, int64(b.BeginRow), b.IsLast, int64(b.FinalRow))
	case common.MsgTClose:
		// Closing twice (or closing a reaped result) is not an error for the client
		if err := db.Results.Close(req.ResultID); err != nil && !errors.Is(err, results.ErrUnknownResult) {
			return errorResponse(err)
		}
		return common.NewCloseResponse(nil)
	case common.MsgTPing:
		return common.NewPingResponse()
	default:
		return common.NewErrorResponse(
			common.SQLStateNotImplemented,
			fmt.Sprintf("RPC QueryAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// execute runs a statement and answers with its first batch
func (adapter *queryServerAdapterImpl) execute(ctx context.Context, req *common.Message, db *VirtualDB) *common.Message {
	args := common.AnyOf(req.Args)

	opened, err := db.Results.Open(ctx, db.Engine, req.Query, args, int(req.FetchSize))
	if err != nil {
		return errorResponse(err)
	}

	// Statements without rows
	if opened.First == nil {
		return common.NewExecuteResponse(0, nil, nil, true, 0, 0, opened.UpdateCount)
	}

	rows, err := toValues(opened.First.Rows)
	if err != nil {
		_ = db.Results.Close(opened.ID)
		return errorResponse(err)
	}

	columns := make([]common.ColumnInfo, len(opened.Columns))
	for i, c := range opened.Columns {
		columns[i] = common.ColumnInfo{Name: c.Name, Type: c.Type}
	}

	return common.NewExecuteResponse(
		opened.ID,
		columns,
		rows,
		opened.First.IsLast,
		int64(opened.First.FinalRow),
		int64(opened.ParamRows),
		opened.UpdateCount,
	)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// toValues converts rows to their wire representation
func toValues(rows []batch.Row) ([][]common.Value, error) {
	out := make([][]common.Value, len(rows))
	for i, row := range rows {
		values, err := common.ValuesOf(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = values
	}
	return out, nil
}

// errorResponse maps an error to an error response with its SQLSTATE
func errorResponse(err error) *common.Message {
	return common.NewErrorResponse(sqlState(err), err.Error())
}

// sqlState returns the SQLSTATE class of an error
func sqlState(err error) string {
	switch {
	case errors.Is(err, engine.ErrSyntax):
		return common.SQLStateSyntax
	case errors.Is(err, engine.ErrUnknownTable):
		return common.SQLStateUndefinedTable
	case errors.Is(err, engine.ErrArgs):
		return common.SQLStateInvalidParameter
	case errors.Is(err, results.ErrUnknownResult), errors.Is(err, engine.ErrClosed):
		return common.SQLStateInvalidCursor
	case errors.Is(err, context.DeadlineExceeded):
		return common.SQLStateTimeout
	}
	if state, ok := sqlengine.SQLState(err); ok {
		return state
	}
	return common.SQLStateGeneral
}
