package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/transport"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	mu         sync.RWMutex
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	// Create client with default transport
	client := &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(config.Transport.ConnectionsPerEndpoint, 10),
			IdleConnTimeout:     90 * time.Second,
			WriteBufferSize:     config.Transport.WriteBufferSize,
			ReadBufferSize:      config.Transport.ReadBufferSize,
		},
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.client = client
	t.serverURLs = parsedURLs
	t.counter = 0
	t.retryCount = max(config.Transport.RetryCount, 1)

	return nil
}

func (t *httpClientTransport) Send(ctx context.Context, shardId uint64, req []byte) (resp []byte, err error) {
	t.mu.RLock()
	client, serverURLs, retryCount := t.client, t.serverURLs, t.retryCount
	t.mu.RUnlock()

	// Check if the transport is initialized
	if client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	var lastErr error
	for i := 0; i < retryCount; i++ {
		// Select the next server via round-robin
		idx := atomic.AddUint32(&t.counter, 1) % uint32(len(serverURLs))
		requestURL := serverURLs[idx].JoinPath(fmt.Sprintf("%d", shardId))

		// Create the request
		httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL.String(), bytes.NewReader(req))
		if err != nil {
			return nil, err
		}
		httpRequest.Header.Set("Content-Type", "application/octet-stream")

		resp, sent, err := t.do(client, httpRequest)
		if err == nil {
			return resp, nil
		}

		// Only requests the server never saw are repeated
		if sent || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, retryCount, err)
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %w", retryCount, lastErr)
}

func (t *httpClientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Close the client
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	// Reset the client and server URLs
	t.client = nil
	t.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// do performs a single request, sent reports whether the server answered
func (t *httpClientTransport) do(client *http.Client, httpRequest *http.Request) (resp []byte, sent bool, err error) {
	httpResponse, err := client.Do(httpRequest)
	if err != nil {
		// A timed out request may have reached the server
		var urlErr *url.Error
		timedOut := errors.As(err, &urlErr) && urlErr.Timeout()
		return nil, timedOut, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, true, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	// Read the response body
	resp, err = io.ReadAll(httpResponse.Body)
	return resp, true, err
}
