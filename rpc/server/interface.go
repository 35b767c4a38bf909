package server

import (
	"context"
	"github.com/ValentinKolb/dQL/lib/engine"
	"github.com/ValentinKolb/dQL/lib/results"
	"github.com/ValentinKolb/dQL/rpc/common"
)

// VirtualDB is a database served by the RPC server, the engine executing its
// statements and the registry of its open results
type VirtualDB struct {
	Name    string
	Engine  engine.Engine
	Results *results.Registry
}

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a context bounding the request, the Message and the virtual database as parameters.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(ctx context.Context, req *common.Message, db *VirtualDB) (resp *common.Message)
}
