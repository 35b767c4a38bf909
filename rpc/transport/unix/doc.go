// Package unix implements the Unix domain socket transport of the query
// driver's RPC system, for clients running on the same machine as the server.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting connection pooling, request routing and error handling from
// the base package. Only the SocketConf buffer sizes apply to Unix sockets.
//
// The server removes a stale socket file at the endpoint path before listening.
package unix
