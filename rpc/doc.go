// Package rpc provides the remote procedure call layer between the dQL
// driver and the query server. Statements are executed on the server, their
// results stay open there and are read by the client batch by batch.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, SQLSTATE codes, configuration structures
//     and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP and an in-process transport for embedded servers).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB),
//     optionally compressed with snappy, zstd or lz4.
//
//   - client: The session of a client with one virtual database, it executes
//     statements and fetches batches of open results.
//
//   - server: The query server, it routes requests to the virtual databases and
//     keeps their open results.
package rpc
