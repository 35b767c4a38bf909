package http

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	server := NewHttpServerTransport()
	server.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", shardId, req))
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(common.ServerConfig{
			Transport: common.ServerTransportConfig{Endpoint: "127.0.0.1:0"},
		})
	}()
	defer func() {
		_ = server.Close()
		if err := <-errCh; err != nil {
			t.Errorf("Listen returned error: %v", err)
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for server.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("Server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	addr := server.Addr().String()

	client := NewHttpClientTransport()
	if err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{addr}, RetryCount: 2},
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	t.Run("Send", func(t *testing.T) {
		resp, err := client.Send(context.Background(), 42, []byte("ping"))
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if string(resp) != "42:ping" {
			t.Errorf("Expected 42:ping, got %q", resp)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}
		if _, err := io.ReadAll(resp.Body); err != nil {
			t.Fatalf("Failed to read metrics: %v", err)
		}
	})

	t.Run("InvalidShard", func(t *testing.T) {
		resp, err := http.Post("http://"+addr+"/abc", "application/octet-stream", nil)
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", resp.StatusCode)
		}
	})

	t.Run("NotConnected", func(t *testing.T) {
		c := NewHttpClientTransport()
		if _, err := c.Send(context.Background(), 1, nil); err == nil {
			t.Error("Expected error for unconnected transport")
		}
	})
}
