package local

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	server := NewLocalTransport()
	server.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
	})

	client := server.Client()
	if _, err := client.Send(context.Background(), 1, []byte("x")); err == nil {
		t.Error("Expected error before Listen")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen(common.ServerConfig{}) }()

	deadline := time.Now().Add(5 * time.Second)
	for server.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("Transport did not start listening")
		}
		time.Sleep(time.Millisecond)
	}

	resp, err := client.Send(context.Background(), 7, []byte("ping"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "7:ping" {
		t.Errorf("Expected 7:ping, got %s", resp)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Send(ctx, 7, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	// closing a client keeps the server running
	_ = client.Close()
	if server.Addr() == nil {
		t.Error("Client Close stopped the server")
	}

	_ = server.Close()
	if err := <-errCh; err != nil {
		t.Errorf("Listen returned error: %v", err)
	}
	if _, err := client.Send(context.Background(), 7, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestListenWithoutHandler(t *testing.T) {
	if err := NewLocalTransport().Listen(common.ServerConfig{}); err == nil {
		t.Error("Expected error without handler")
	}
}
