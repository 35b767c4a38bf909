package base

import (
	"bytes"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		shardID   uint64
		requestID uint64
		data      []byte
		buf       []byte
	}{
		{"Empty", 1, 2, []byte{}, nil},
		{"SmallBuffer", 3, 4, bytes.Repeat([]byte{7}, 100), make([]byte, 10)},
		{"LargeBuffer", 5, 6, []byte("select"), make([]byte, 1024)},
		{"MaxIDs", ^uint64(0), ^uint64(0), []byte{1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			errCh := make(chan error, 1)
			go func() {
				errCh <- writeFrame(client, tt.shardID, tt.requestID, tt.data)
			}()

			shardID, requestID, data, err := readFrame(server, tt.buf)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if err := <-errCh; err != nil {
				t.Fatalf("writeFrame failed: %v", err)
			}
			if shardID != tt.shardID || requestID != tt.requestID {
				t.Errorf("Expected ids %d/%d, got %d/%d", tt.shardID, tt.requestID, shardID, requestID)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("Expected data %v, got %v", tt.data, data)
			}
		})
	}
}

func TestFrameTooLarge(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// Header announcing a payload above the limit
	header := []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0xFF, 0xFF, 0xFF, 0xFF}
	go func() {
		_, _ = client.Write(header)
	}()

	if _, _, _, err := readFrame(server, nil); err == nil {
		t.Fatal("Expected error for oversized frame")
	}
}
