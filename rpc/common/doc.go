// Package common provides the data structures shared by the driver, the RPC
// client and the query server. It defines the protocol messages, the typed
// value codec, the configuration structures and the logging setup.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - A typed value representation for statement arguments and row values
//   - Configuration structures for client and server components
//   - Custom logging implementation on top of Dragonboat's logger package
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Execute requests
//     carry a query with its arguments, the response carries the result id, the
//     column descriptions and the first batch of rows. Fetch requests carry a
//     result id and a begin row, the response a batch of rows plus the end
//     information (IsLast, FinalRow).
//
//   - Value: A tagged value (null, int, float, bool, string, bytes, time) that
//     round-trips through every serializer without losing its type.
//
//   - ServerConfig: Configuration of the query server, including the virtual
//     databases it serves. Each virtual database is addressed on the wire by a
//     shard id derived from its name (DatabaseShardID).
//
//   - ClientConfig: Configuration for client components, controlling endpoints,
//     timeouts, socket options and retry behavior.
//
//   - Logger: Custom logging implementation that plugs into the logger package
//     of Dragonboat and gives all packages the same output format.
package common
