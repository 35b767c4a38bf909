// Package base provides a foundation for the stream transports of the query
// driver, implementing core functionality for RPC communication independent of
// the specific network protocol (TCP, Unix sockets). It serves as a base layer
// that can be extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Connection pooling and buffer reuse
//   - Frame-based message protocol with shardID and requestID tracking
//   - Request correlation, retries and reconnection
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that manages multiple connections
//     with round-robin load balancing. A broken connection fails all requests
//     waiting on it and is re-established by its reader goroutine.
//
//   - serverTransport: Core server implementation that accepts connections and
//     passes each frame to the registered handler together with its shardID
//     (the id of the virtual database).
//
// Retries:
//
//	Only requests that could not be written are retried. A request that timed
//	out or whose context was cancelled may already have been executed by the
//	server and is reported to the caller instead, so statements are never run
//	twice by the transport.
//
// Thread Safety:
//
//	All public methods are thread-safe. The client transport uses atomic operations
//	and mutexes to ensure concurrent access safety, while the server creates a
//	dedicated goroutine for each connection and bounds the workers per connection.
package base
