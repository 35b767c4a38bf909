package local

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/transport"
	"net"
	"sync"
)

// ErrClosed is returned by Send once the server side is closed
var ErrClosed = errors.New("local transport closed")

// Addr is the address of a local transport
type Addr string

func (a Addr) Network() string { return "local" }
func (a Addr) String() string  { return string(a) }

// NewLocalTransport creates a transport whose clients talk to the handler
// registered on its server side
func NewLocalTransport() *Transport {
	return &Transport{stopCh: make(chan struct{})}
}

// Transport is the server side of an in-process transport
type Transport struct {
	mu        sync.RWMutex
	handler   transport.ServerHandleFunc
	listening bool
	closed    bool

	stopCh    chan struct{}
	closeOnce sync.Once
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *Transport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = handler
}

func (t *Transport) Listen(config common.ServerConfig) error {
	t.mu.Lock()
	if t.handler == nil {
		t.mu.Unlock()
		return fmt.Errorf("no handler registered")
	}
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.listening = true
	t.mu.Unlock()

	<-t.stopCh
	return nil
}

func (t *Transport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.listening || t.closed {
		return nil
	}
	return Addr("local")
}

func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		close(t.stopCh)
	})
	return nil
}

// Client returns a client side of the transport. Closing the client does not
// close the server side.
func (t *Transport) Client() transport.IRPCClientTransport {
	return &client{server: t}
}

// --------------------------------------------------------------------------
// Client side
// --------------------------------------------------------------------------

type client struct {
	server *Transport
}

func (c *client) Connect(config common.ClientConfig) error {
	return nil
}

func (c *client) Send(ctx context.Context, shardId uint64, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.server.mu.RLock()
	handler, listening, closed := c.server.handler, c.server.listening, c.server.closed
	c.server.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !listening {
		return nil, fmt.Errorf("local transport is not listening")
	}

	// the handler must not keep the caller's buffer
	buf := make([]byte, len(req))
	copy(buf, req)
	return handler(shardId, buf), nil
}

func (c *client) Close() error {
	return nil
}
