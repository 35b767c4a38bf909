// Package tcp implements the TCP socket transport of the query driver's RPC
// system. It provides concrete implementations of the base package's connector
// interfaces and applies the TCPConf and SocketConf options to every
// connection on both sides.
//
// See the base package documentation for the framing, pooling and retry
// behaviour shared by all stream transports.
package tcp
