// Package server implements the RPC server of the query system.
// It serves any number of virtual databases, executes statements on their
// engines and keeps the results that did not fit into the first batch open
// until the client fetched or closed them.
//
// The package focuses on:
//   - Server-side RPC request handling for execute, fetch, close and ping requests
//   - Adapter pattern to decouple the query logic from RPC mechanisms
//   - Mapping engine and backend errors to SQLSTATE codes
//   - Releasing results that clients stopped fetching
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a VirtualDB.
//
//   - VirtualDB: A served database, its engine.Engine and its results.Registry.
//
//   - NewQueryServerAdapter: Factory function creating the adapter that translates
//     requests into engine executions and registry fetches.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Databases: []common.ServerDatabase{
//	    {Name: "scratch", Type: common.DatabaseTypeMemory},
//	    {Name: "shop", Type: common.DatabaseTypePostgres, DSN: "postgres://localhost/shop"},
//	  },
//	  Transport:        common.ServerTransportConfig{Type: "tcp", Endpoint: "0.0.0.0:8100"},
//	  TimeoutSecond:    5,
//	  ResultIdleSecond: 300,
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Each database is addressed by the shard id derived from its name
// (common.DatabaseShardID), so one server process can host many databases
// behind a single endpoint. Requests for unknown databases are rejected with
// SQLSTATE 08004.
//
// The server publishes request counters and latency histograms through
// VictoriaMetrics/metrics, the HTTP transport exposes them on /metrics.
// With MDNS enabled the server announces itself and its databases on the
// local network (see package discovery).
package server
