// Package http implements an HTTP-based transport layer for the RPC communication
// between the query driver and the query server.
//
// Every request is a POST to /{shardId} with the serialized message as body,
// the shard id selects the virtual database. The server additionally exposes
// the process metrics in Prometheus format at GET /metrics.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport with round-robin
//     selection across the configured endpoints. Requests that never reached a
//     server are retried on the next endpoint, everything else is returned to
//     the caller.
//
//   - httpServerTransport: Implements IRPCServerTransport, routing incoming
//     requests to the registered handler. With log level debug every request
//     is logged with its status and duration.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently.
package http
