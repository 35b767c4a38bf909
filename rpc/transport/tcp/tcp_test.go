package tcp

import (
	"bytes"
	"context"
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/transport"
	"sync"
	"testing"
	"time"
)

// startServer starts an echo server on an ephemeral port and returns its address
func startServer(t *testing.T) (transport.IRPCServerTransport, string) {
	t.Helper()

	server := NewTCPServerTransport()
	server.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
	})

	config := common.ServerConfig{
		TimeoutSecond: 5,
		Transport: common.ServerTransportConfig{
			Endpoint:       "127.0.0.1:0",
			WorkersPerConn: 4,
			TCPConf:        common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen(config) }()
	t.Cleanup(func() {
		_ = server.Close()
		if err := <-errCh; err != nil {
			t.Errorf("Listen returned error: %v", err)
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for server.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("Server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return server, server.Addr().String()
}

func TestRoundTrip(t *testing.T) {
	_, addr := startServer(t)

	client := NewTCPClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{addr},
			RetryCount:             2,
			ConnectionsPerEndpoint: 2,
			TCPConf:                common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	// Concurrent requests must be matched to their own responses
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := []byte(fmt.Sprintf("req-%d", i))
			resp, err := client.Send(context.Background(), uint64(i), req)
			if err != nil {
				t.Errorf("Send %d failed: %v", i, err)
				return
			}
			expected := []byte(fmt.Sprintf("%d:req-%d", i, i))
			if !bytes.Equal(resp, expected) {
				t.Errorf("Expected %q, got %q", expected, resp)
			}
		}(i)
	}
	wg.Wait()
}

func TestSendCancelled(t *testing.T) {
	_, addr := startServer(t)

	client := NewTCPClientTransport()
	if err := client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{addr}, TCPConf: common.TCPConf{TCPLingerSec: -1}},
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Send(ctx, 1, []byte("x")); err == nil {
		// The response may win the race against the cancelled context
		t.Log("Request completed before cancellation was observed")
	}
}

func TestConnectFailure(t *testing.T) {
	client := NewTCPClientTransport()
	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Error("Expected error without endpoints")
	}
	err := client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{"127.0.0.1:1"}},
	})
	if err == nil {
		t.Error("Expected error for unreachable endpoint")
	}
}
