package driver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/discovery"
	"github.com/ValentinKolb/dQL/rpc/client"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"github.com/ValentinKolb/dQL/rpc/server"
	"github.com/ValentinKolb/dQL/rpc/transport"
	"github.com/ValentinKolb/dQL/rpc/transport/http"
	"github.com/ValentinKolb/dQL/rpc/transport/local"
	"github.com/ValentinKolb/dQL/rpc/transport/tcp"
	"github.com/ValentinKolb/dQL/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"time"
)

var Logger = logger.GetLogger("driver")

// DriverName is the name the driver is registered with
const DriverName = "dql"

func init() {
	sql.Register(DriverName, &Driver{})
}

// Driver implements driver.Driver and driver.DriverContext
type Driver struct{}

// Open opens a connection for the dsn, see ParseDSN
func (d *Driver) Open(dsn string) (driver.Conn, error) {
	c, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return c.Connect(context.Background())
}

// OpenConnector parses the dsn once for all connections of a sql.DB
func (d *Driver) OpenConnector(dsn string) (driver.Connector, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewConnector(cfg)
}

// --------------------------------------------------------------------------
// Connector
// --------------------------------------------------------------------------

// NewConnector creates a connector for use with sql.OpenDB
func NewConnector(cfg *Config) (*Connector, error) {
	ser, err := serializer.New(cfg.Serializer, cfg.Compression)
	if err != nil {
		return nil, err
	}
	return &Connector{cfg: cfg, serializer: ser}, nil
}

// Connector creates connections of one dsn. An embedded server is started
// with the first connection and stopped by Close (called by sql.DB.Close).
type Connector struct {
	cfg        *Config
	serializer serializer.IRPCSerializer

	mu                sync.Mutex
	embedded          *embeddedServer
	resolved          []string // endpoints found through mDNS
	resolvedTransport string
}

// Connect opens a new session to the database of the dsn
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	var (
		t   transport.IRPCClientTransport
		err error
	)

	clientConfig := c.clientConfig()
	switch c.cfg.Mode {
	case ModeEmbedded:
		t, err = c.embeddedClient()
	case ModeMDNS:
		clientConfig.Transport.Endpoints, err = c.resolve(ctx)
		if err == nil {
			t, err = newTransport(c.resolvedTransport)
		}
	default:
		t, err = newTransport(c.cfg.Transport)
	}
	if err != nil {
		return nil, client.WrapSQLError(common.SQLStateConnectionFailure, err)
	}

	session, err := client.NewSession(c.cfg.Database, clientConfig, t, c.serializer)
	if err != nil {
		return nil, client.WrapSQLError(common.SQLStateConnectionFailure, err)
	}
	Logger.Debugf("connected to %s", c.cfg.Database)
	return &Conn{session: session, cfg: c.cfg}, nil
}

// Driver returns the dql driver
func (c *Connector) Driver() driver.Driver {
	return &Driver{}
}

// Close stops the embedded server, if any
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.embedded == nil {
		return nil
	}
	err := c.embedded.close()
	c.embedded = nil
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *Connector) clientConfig() common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: c.cfg.TimeoutSecond,
		Transport: common.ClientTransportConfig{
			Endpoints:              c.cfg.Endpoints,
			RetryCount:             c.cfg.Retries,
			ConnectionsPerEndpoint: c.cfg.ConnsPerEndpoint,
			TCPConf:                common.TCPConf{TCPNoDelay: true, TCPKeepAliveSec: 30, TCPLingerSec: -1},
		},
	}
}

// resolve looks up a server announcing the database once per connector
func (c *Connector) resolve(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved != nil {
		return c.resolved, nil
	}

	timeout := discovery.DefaultTimeout
	if c.cfg.TimeoutSecond > 0 {
		timeout = min(timeout, time.Duration(c.cfg.TimeoutSecond)*time.Second)
	}
	ep, err := discovery.Resolve(ctx, c.cfg.Database, timeout)
	if err != nil {
		return nil, err
	}
	Logger.Infof("resolved %s to %s (%s) via mDNS", c.cfg.Database, ep.Address, ep.Instance)
	c.resolved = []string{ep.Address}
	c.resolvedTransport = ep.Transport
	return c.resolved, nil
}

// embeddedClient starts the embedded server on first use
func (c *Connector) embeddedClient() (transport.IRPCClientTransport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.embedded == nil {
		e, err := startEmbedded(c.cfg, c.serializer)
		if err != nil {
			return nil, err
		}
		c.embedded = e
	}
	return c.embedded.transport.Client(), nil
}

// newTransport creates a client transport by name
func newTransport(name string) (transport.IRPCClientTransport, error) {
	switch name {
	case "tcp", "":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	case "http":
		return http.NewHttpClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %q", name)
	}
}

// --------------------------------------------------------------------------
// Embedded server
// --------------------------------------------------------------------------

// embeddedServer is an in-memory query server running in the process
type embeddedServer struct {
	transport *local.Transport
	stop      func() error
	done      chan error
}

func startEmbedded(cfg *Config, ser serializer.IRPCSerializer) (*embeddedServer, error) {
	t := local.NewLocalTransport()
	s := server.NewRPCServer(common.ServerConfig{
		Databases: []common.ServerDatabase{{
			Name: cfg.Database,
			Type: common.DatabaseTypeMemory,
			DSN:  cfg.Script,
		}},
		Transport:     common.ServerTransportConfig{Type: "local"},
		TimeoutSecond: int64(cfg.TimeoutSecond),
	}, t, ser)

	e := &embeddedServer{transport: t, stop: s.Close, done: make(chan error, 1)}
	go func() { e.done <- s.Serve() }()

	// wait until the server listens or failed to start
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for t.Addr() == nil {
		select {
		case err := <-e.done:
			if err == nil {
				err = fmt.Errorf("embedded server stopped")
			}
			return nil, err
		case <-ticker.C:
		}
	}
	return e, nil
}

// close stops the server and waits for it to return
func (e *embeddedServer) close() error {
	err := e.stop()
	if serveErr := <-e.done; serveErr != nil && err == nil {
		err = serveErr
	}
	return err
}
