// Package client implements the RPC client of the query driver. A Session
// talks to one virtual database of a query server through the configured
// transport and serializer.
//
// Key Components:
//
//   - Session: Execute, Fetch, CloseResult and Ping requests. Fetcher adapts an
//     open result to batch.BatchFetcher so a batch.BatchResults can page
//     through it.
//
//   - SQLError: every error response of the server is returned as *SQLError
//     carrying the SQLSTATE sent by the server (HY000 if none was sent).
//     Transport failures are reported with SQLSTATE 08006.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		TimeoutSecond: 5,
//		Transport: common.ClientTransportConfig{
//			Endpoints:  []string{"localhost:8100"},
//			RetryCount: 3,
//		},
//	}
//
//	s, _ := client.NewSession("shop", config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	res, _ := s.Execute(ctx, "SELECT * FROM items ORDER BY name", nil, 100)
//	rows, _ := batch.NewBatchResults(s.Fetcher(res.ID, 100), res.First, batch.Options{Scrollable: true})
//
// Thread Safety:
//
//	Sessions are safe for concurrent use. A BatchResults created on top of a
//	session is not.
package client
