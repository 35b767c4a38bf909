// Package transport defines the interfaces for the RPC communication between
// the query driver and the query server. It provides a common contract that all
// transport implementations must fulfill, enabling protocol-agnostic communication.
//
// Every request carries the shard id of the virtual database it targets, see
// common.DatabaseShardID.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// Implementations live in the tcp, unix and http sub packages.
package transport
