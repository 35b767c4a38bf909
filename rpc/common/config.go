package common

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Virtual databases
// --------------------------------------------------------------------------

type DatabaseType string

const (
	DatabaseTypeMemory   DatabaseType = "mem"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeSQLite   DatabaseType = "sqlite3"
)

// ServerDatabase is one virtual database served by the RPC server
type ServerDatabase struct {
	// Name of the virtual database, the path of a client DSN
	Name string
	// Type selects the engine
	Type DatabaseType
	// DSN of the backend (unused for in-memory databases)
	DSN string
}

// ShardID returns the shard id the database is addressed with on the wire
func (d ServerDatabase) ShardID() uint64 {
	return DatabaseShardID(d.Name)
}

// DatabaseShardID maps a virtual database name to its shard id
func DatabaseShardID(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// ParseServerDatabase parses a database definition of the form
// name=mem, name=sqlite3:<path>, name=mysql:<dsn> or name=postgres:<dsn>
func ParseServerDatabase(def string) (ServerDatabase, error) {
	name, backend, ok := strings.Cut(def, "=")
	if !ok || name == "" || backend == "" {
		return ServerDatabase{}, fmt.Errorf("invalid database definition %q, expected name=type[:dsn]", def)
	}
	typ, dsn, _ := strings.Cut(backend, ":")
	db := ServerDatabase{Name: name, Type: DatabaseType(typ), DSN: dsn}

	switch db.Type {
	case DatabaseTypeMemory:
	case DatabaseTypeMySQL, DatabaseTypePostgres, DatabaseTypeSQLite:
		if dsn == "" {
			return ServerDatabase{}, fmt.Errorf("database %s of type %s needs a dsn", name, typ)
		}
	default:
		return ServerDatabase{}, fmt.Errorf("unknown database type %q for %s", typ, name)
	}
	return db, nil
}

// --------------------------------------------------------------------------
// Transport configuration
// --------------------------------------------------------------------------

// SocketConf holds socket options shared by all stream transports
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds tcp specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative leaves the system default
}

// ServerTransportConfig configures the listening side of a transport
type ServerTransportConfig struct {
	Type           string // tcp, unix or http, announced via mDNS
	Endpoint       string
	BufferSize     int
	WorkersPerConn int
	SocketConf
	TCPConf
}

// ClientTransportConfig configures the dialing side of a transport
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the query server
type ServerConfig struct {
	// Databases served, each one is a shard on the wire
	Databases []ServerDatabase

	// Transport settings
	Transport ServerTransportConfig

	// Connection timeout
	TimeoutSecond int64

	// Results not fetched for this long are released (0 disables the reaper)
	ResultIdleSecond int64

	// Upper bound for the fetch size a client may request
	MaxFetchSize int64

	// Advertise the server via mDNS
	MDNS bool

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Transport", c.Transport.Type)
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("mDNS", strconv.FormatBool(c.MDNS))

	// Results
	addSection("Results")
	addField("Idle Timeout", fmt.Sprintf("%d sec", c.ResultIdleSecond))
	addField("Max Fetch Size", strconv.FormatInt(c.MaxFetchSize, 10))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Databases
	addSection("Databases")
	for _, db := range c.Databases {
		addField(db.Name, fmt.Sprintf("%s (shard %d)", db.Type, db.ShardID()))
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Transport     ClientTransportConfig
	TimeoutSecond int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
