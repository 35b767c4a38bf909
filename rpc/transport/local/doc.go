// Package local implements an in-process transport. The server side and the
// client side share memory, requests are handed to the server handler
// without any socket or framing.
//
// It is used to embed a query server into the process of the client (the
// dql:mem DSN of package driver) and in tests.
//
// Usage:
//
//	t := local.NewLocalTransport()
//	s := server.NewRPCServer(config, t, serializer.NewBinarySerializer())
//	go s.Serve()
//
//	session, err := client.NewSession("scratch", common.ClientConfig{}, t.Client(), serializer.NewBinarySerializer())
package local
