package driver

import (
	"fmt"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Mode selects how a connector reaches its server
type Mode string

const (
	// ModeRemote dials the endpoints of the DSN
	ModeRemote Mode = "remote"
	// ModeEmbedded runs an in-memory server inside the process
	ModeEmbedded Mode = "mem"
	// ModeMDNS resolves the endpoint through mDNS discovery
	ModeMDNS Mode = "mdns"
)

// Property keys of a DSN, a profile or an environment override (DQL_<KEY>)
const (
	PropTransport        = "transport"
	PropSerializer       = "serializer"
	PropCompression      = "compression"
	PropFetchSize        = "fetchSize"
	PropCachedBatches    = "cachedBatches"
	PropTimeout          = "timeout"
	PropRetries          = "retries"
	PropConnsPerEndpoint = "connsPerEndpoint"
	PropProfile          = "profile"
	PropProfiles         = "profiles"
	PropDatabase         = "db"
	PropScript           = "script"
	PropEndpoint         = "endpoint"
)

var knownProps = []string{
	PropTransport, PropSerializer, PropCompression, PropFetchSize, PropCachedBatches,
	PropTimeout, PropRetries, PropConnsPerEndpoint, PropProfile, PropProfiles,
	PropDatabase, PropScript, PropEndpoint,
}

const (
	DefaultFetchSize     = 100
	DefaultCachedBatches = 3
	DefaultTimeoutSecond = 30
	DefaultRetries       = 3
	DefaultDatabase      = "default"
)

// Config is a parsed DSN
type Config struct {
	Mode      Mode
	Endpoints []string
	Database  string

	Transport        string // tcp, unix or http
	Serializer       string // binary, json or gob
	Compression      serializer.Compression
	FetchSize        int
	CachedBatches    int
	TimeoutSecond    int
	Retries          int
	ConnsPerEndpoint int

	// Script seeds the embedded database
	Script string

	// Properties are the merged raw properties the config was built from
	Properties map[string]string
}

// ParseDSN parses a data source name. Accepted forms are
//
//	dql://host:port[,host:port]/<db>?<key>=<value>&...
//	dql:mem[/<db>]?<key>=<value>&...
//	dql:mdns[/<db>]?<key>=<value>&...
//
// Properties are merged from (lowest to highest priority) the defaults, the
// profile named by the profile property, DQL_<KEY> environment variables and
// the DSN itself. A key given twice in the DSN takes its last value.
func ParseDSN(dsn string) (*Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid dsn: %w", err)
	}
	if u.Scheme != "dql" {
		return nil, fmt.Errorf("invalid dsn scheme %q, expected dql", u.Scheme)
	}

	explicit, err := properties(u.Query())
	if err != nil {
		return nil, err
	}

	cfg := &Config{Mode: ModeRemote}
	switch {
	case u.Opaque != "":
		mode, db, _ := strings.Cut(u.Opaque, "/")
		switch Mode(mode) {
		case ModeEmbedded, ModeMDNS:
			cfg.Mode = Mode(mode)
		default:
			return nil, fmt.Errorf("invalid dsn dql:%s, expected dql:mem or dql:mdns", mode)
		}
		if db != "" {
			explicit[PropDatabase] = db
		}
	case u.Host != "":
		explicit[PropEndpoint] = u.Host
		if db := strings.Trim(u.Path, "/"); db != "" {
			explicit[PropDatabase] = db
		}
	default:
		return nil, fmt.Errorf("invalid dsn %q, missing host", dsn)
	}

	// Merge: profile < env < dsn
	props := make(map[string]string)
	if name, ok := lookupProp(PropProfile, explicit); ok {
		profile, err := LoadProfile(profilesPath(explicit), name)
		if err != nil {
			return nil, err
		}
		for k, v := range profile {
			props[k] = v
		}
	}
	for k, v := range envProperties() {
		props[k] = v
	}
	for k, v := range explicit {
		props[k] = v
	}

	if err := cfg.apply(props); err != nil {
		return nil, err
	}
	return cfg, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// apply sets the config fields from the merged properties
func (c *Config) apply(props map[string]string) error {
	c.Properties = props

	get := func(key, def string) string {
		if v, ok := props[key]; ok && v != "" {
			return v
		}
		return def
	}
	var err error
	getInt := func(key string, def, minimum int) int {
		v, ok := props[key]
		if !ok || v == "" || err != nil {
			return def
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < minimum {
			err = fmt.Errorf("invalid value %q for %s, expected an integer >= %d", v, key, minimum)
			return def
		}
		return n
	}

	c.Database = get(PropDatabase, DefaultDatabase)
	c.Transport = get(PropTransport, "tcp")
	c.Serializer = get(PropSerializer, "binary")
	c.Compression = serializer.Compression(get(PropCompression, string(serializer.CompressionNone)))
	c.Script = get(PropScript, "")
	c.FetchSize = getInt(PropFetchSize, DefaultFetchSize, 1)
	c.CachedBatches = getInt(PropCachedBatches, DefaultCachedBatches, 1)
	c.TimeoutSecond = getInt(PropTimeout, DefaultTimeoutSecond, 0)
	c.Retries = getInt(PropRetries, DefaultRetries, 0)
	c.ConnsPerEndpoint = getInt(PropConnsPerEndpoint, 1, 1)
	if err != nil {
		return err
	}

	if endpoints := get(PropEndpoint, ""); endpoints != "" {
		c.Endpoints = strings.Split(endpoints, ",")
	}

	switch c.Transport {
	case "tcp", "unix", "http":
	default:
		return fmt.Errorf("invalid transport %q, expected tcp, unix or http", c.Transport)
	}
	if _, err := serializer.New(c.Serializer, c.Compression); err != nil {
		return err
	}
	if c.Mode == ModeRemote && len(c.Endpoints) == 0 {
		return fmt.Errorf("dsn has no endpoint")
	}
	return nil
}

// properties converts url parameters, the last value of a key wins
func properties(query url.Values) (map[string]string, error) {
	props := make(map[string]string, len(query))
	for key, values := range query {
		if !isKnownProp(key) {
			return nil, fmt.Errorf("unknown dsn property %q", key)
		}
		props[key] = values[len(values)-1]
	}
	return props, nil
}

// envProperties returns the properties set as DQL_<KEY> environment variables
func envProperties() map[string]string {
	props := make(map[string]string)
	for _, key := range knownProps {
		if key == PropProfile || key == PropProfiles {
			continue
		}
		if v, ok := os.LookupEnv(envKey(key)); ok {
			props[key] = v
		}
	}
	return props
}

// lookupProp returns a property of the dsn, falling back to the environment
func lookupProp(key string, explicit map[string]string) (string, bool) {
	if v, ok := explicit[key]; ok {
		return v, true
	}
	return os.LookupEnv(envKey(key))
}

func envKey(key string) string {
	return "DQL_" + strings.ToUpper(key)
}

func isKnownProp(key string) bool {
	for _, k := range knownProps {
		if k == key {
			return true
		}
	}
	return false
}
