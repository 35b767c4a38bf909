package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/batch"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"github.com/ValentinKolb/dQL/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores all data needed to talk to one virtual database
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used by the session to send requests
// It takes a context, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also maps error responses to *SQLError and checks if the type of the response is the expected type
func invokeRPCRequest(ctx context.Context, shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(ctx, shardId, reqBytes)
	if err != nil {
		return nil, &SQLError{SQLState: common.SQLStateConnectionFailure, Msg: err.Error(), cause: err}
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize %s response: %w", req.MsgType, err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, newSQLError(resp.SQLState, resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}

// toBatch converts the rows of a response into a batch
func toBatch(resp *common.Message) *batch.Batch {
	rows := make([]batch.Row, len(resp.Rows))
	for i, values := range resp.Rows {
		rows[i] = common.AnyOf(values)
	}

	b := batch.NewBatch(rows, int(resp.BeginRow), resp.IsLast)
	if resp.FinalRow != common.NoFinalRow {
		b.WithFinalRow(int(resp.FinalRow))
	}
	return b
}
