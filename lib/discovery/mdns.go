package discovery

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/hashicorp/mdns"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

var Logger = logger.GetLogger("discovery")

const (
	// Service is the mDNS service type of query servers
	Service = "_dql._tcp"
	// DefaultTimeout is the time Lookup listens for answers
	DefaultTimeout = 2 * time.Second
)

// Endpoint is a discovered query server
type Endpoint struct {
	Instance  string
	Host      string
	Address   string // host:port to dial
	Transport string
	Databases []string
}

// Serves returns whether the server announced the database
func (e Endpoint) Serves(database string) bool {
	for _, db := range e.Databases {
		if db == database {
			return true
		}
	}
	return false
}

// Advertise announces a server listening on port and returns a function that
// stops the announcement. An empty instance name is derived from the hostname.
func Advertise(instance string, port int, transport string, databases []string) (shutdown func() error, err error) {
	if instance == "" {
		instance = InstanceName()
	}

	txt := []string{"transport=" + transport}
	for _, db := range databases {
		txt = append(txt, "db="+db)
	}

	service, err := mdns.NewMDNSService(instance, Service, "", "", port, nil, txt)
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service, Logger: quietLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to start mdns server: %w", err)
	}

	Logger.Infof("advertising %s on port %d with databases %v", instance, port, databases)
	return server.Shutdown, nil
}

// Lookup listens for servers until the timeout expires or ctx is done
func Lookup(ctx context.Context, timeout time.Duration) ([]Endpoint, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	params := mdns.DefaultParams(Service)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	params.Logger = quietLogger()

	errCh := make(chan error, 1)
	go func() {
		errCh <- mdns.Query(params)
		close(entries)
	}()

	var (
		endpoints []Endpoint
		seen      = make(map[string]bool)
	)
	for entry := range entries {
		ep, ok := toEndpoint(entry)
		if !ok || seen[ep.Address] {
			continue
		}
		seen[ep.Address] = true
		endpoints = append(endpoints, ep)
	}

	if err := <-errCh; err != nil {
		return endpoints, fmt.Errorf("mdns query failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return endpoints, err
	}
	return endpoints, nil
}

// Resolve returns the first server announcing the database
func Resolve(ctx context.Context, database string, timeout time.Duration) (Endpoint, error) {
	endpoints, err := Lookup(ctx, timeout)
	if err != nil && len(endpoints) == 0 {
		return Endpoint{}, err
	}
	for _, ep := range endpoints {
		if database == "" || ep.Serves(database) {
			return ep, nil
		}
	}
	return Endpoint{}, fmt.Errorf("no server announces database %q", database)
}

// InstanceName returns a name unique to this process, servers on the same
// host must not share an instance name
func InstanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "dql"
	}
	return host + "-" + uuid.NewString()[:8]
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// toEndpoint converts an answer, entries of other services are skipped
func toEndpoint(entry *mdns.ServiceEntry) (Endpoint, bool) {
	if !strings.Contains(entry.Name, Service) {
		return Endpoint{}, false
	}

	var addr net.IP
	switch {
	case entry.AddrV4 != nil:
		addr = entry.AddrV4
	case entry.AddrV6 != nil:
		addr = entry.AddrV6
	default:
		return Endpoint{}, false
	}

	ep := Endpoint{
		Instance:  strings.TrimSuffix(entry.Name, "."+Service+".local."),
		Host:      entry.Host,
		Address:   net.JoinHostPort(addr.String(), strconv.Itoa(entry.Port)),
		Transport: "tcp",
	}
	for _, field := range entry.InfoFields {
		key, value, _ := strings.Cut(field, "=")
		switch key {
		case "db":
			ep.Databases = append(ep.Databases, value)
		case "transport":
			ep.Transport = value
		}
	}
	return ep, true
}

// quietLogger drops the library's own log output
func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
