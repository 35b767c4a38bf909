package server

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dQL/lib/discovery"
	"github.com/ValentinKolb/dQL/lib/engine"
	"github.com/ValentinKolb/dQL/lib/engine/memengine"
	"github.com/ValentinKolb/dQL/lib/engine/sqlengine"
	"github.com/ValentinKolb/dQL/lib/results"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"github.com/ValentinKolb/dQL/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create databases map
	dbMap := xsync.NewMapOf[uint64, *VirtualDB]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewQueryServerAdapter(),
		databases:  dbMap,
		stopCh:     make(chan struct{}),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	databases  *xsync.MapOf[uint64, *VirtualDB]

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu           sync.Mutex
	mdnsShutdown func() error
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message
		start := time.Now()

		// Get appropriate database
		db, ok := s.databases.Load(shardId)

		// Case database does not exist -> error
		if !ok {
			respMsg = common.NewErrorResponse(common.SQLStateRejected, fmt.Sprintf("unknown database (shard %d)", shardId))
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.NewErrorResponse(common.SQLStateGeneral, fmt.Sprintf("failed to deserialize request: %s", err))
			} else {
				// Let the adapter handle the request
				ctx, cancel := s.requestContext()
				respMsg = s.adapter.Handle(ctx, &msg, db)
				cancel()
			}
		}

		observe(msg.MsgType, respMsg, time.Since(start))

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize %s response: %v", msg.MsgType, err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(
				common.SQLStateGeneral,
				fmt.Sprintf("failed to serialize response: %s", err),
			))
		}
		return val
	})
}

// requestContext bounds a request by the configured timeout
func (s *rpcServer) requestContext() (context.Context, context.CancelFunc) {
	if s.config.TimeoutSecond <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(s.config.TimeoutSecond)*time.Second)
}

func (s *rpcServer) init() error {
	if len(s.config.Databases) == 0 {
		return fmt.Errorf("no databases configured")
	}

	// CREATE DATABASES

	/*
		Note: A single RPC Server can serve any number of virtual databases.
		Each database is addressed by the shard id derived from its name and
		has its own engine and its own registry of open results.
	*/

	for _, dbConfig := range s.config.Databases {
		if _, exists := s.databases.Load(dbConfig.ShardID()); exists {
			s.closeDatabases()
			return fmt.Errorf("database %s is configured twice", dbConfig.Name)
		}

		eng, err := openEngine(dbConfig)
		if err != nil {
			s.closeDatabases()
			return fmt.Errorf("failed to open database %s: %w", dbConfig.Name, err)
		}

		s.databases.Store(dbConfig.ShardID(), &VirtualDB{
			Name:    dbConfig.Name,
			Engine:  eng,
			Results: results.New(dbConfig.Name, int(s.config.MaxFetchSize)),
		})
		Logger.Infof("created %s database %s (shard %d)", dbConfig.Type, dbConfig.Name, dbConfig.ShardID())
	}

	Logger.Infof("dQL setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the databases and start the transport layer.
// It blocks until the server is closed.
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}

	if s.config.ResultIdleSecond > 0 {
		s.wg.Add(1)
		go s.reapIdleResults(time.Duration(s.config.ResultIdleSecond) * time.Second)
	}
	if s.config.MDNS {
		s.wg.Add(1)
		go s.advertise()
	}

	err = s.transport.Listen(s.config)
	_ = s.Close()
	return err
}

// Addr returns the address the server listens on, nil before it listens
func (s *rpcServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Close stops the transport and releases all databases
func (s *rpcServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		err = s.transport.Close()
		s.wg.Wait()

		s.mu.Lock()
		if s.mdnsShutdown != nil {
			_ = s.mdnsShutdown()
		}
		s.mu.Unlock()

		s.closeDatabases()
		Logger.Infof("RPC Server closed")
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// openEngine creates the engine of a virtual database
func openEngine(db common.ServerDatabase) (engine.Engine, error) {
	switch db.Type {
	case common.DatabaseTypeMemory:
		eng := memengine.New(memengine.Options{})
		if db.DSN == "" {
			return eng, nil
		}

		// The dsn of an in-memory database is an optional seed script
		f, err := os.Open(db.DSN)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		n, err := eng.LoadScript(context.Background(), f)
		if err != nil {
			_ = eng.Close()
			return nil, err
		}
		Logger.Infof("loaded %d statements from %s into %s", n, db.DSN, db.Name)
		return eng, nil

	case common.DatabaseTypeMySQL, common.DatabaseTypePostgres, common.DatabaseTypeSQLite:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return sqlengine.Open(ctx, string(db.Type), db.DSN, sqlengine.Options{})

	default:
		return nil, fmt.Errorf("unknown database type %q", db.Type)
	}
}

// closeDatabases releases the results and engines of all databases
func (s *rpcServer) closeDatabases() {
	s.databases.Range(func(id uint64, db *VirtualDB) bool {
		db.Results.CloseAll()
		if err := db.Engine.Close(); err != nil {
			Logger.Warningf("failed to close database %s: %v", db.Name, err)
		}
		s.databases.Delete(id)
		return true
	})
}

// reapIdleResults releases results that were not fetched for maxIdle
func (s *rpcServer) reapIdleResults(maxIdle time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(max(maxIdle/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.databases.Range(func(_ uint64, db *VirtualDB) bool {
				if n := db.Results.CloseIdle(maxIdle); n > 0 {
					Logger.Infof("%s: released %d idle results", db.Name, n)
				}
				return true
			})
		}
	}
}

// advertise announces the server via mDNS once it listens
func (s *rpcServer) advertise() {
	defer s.wg.Done()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var addr net.Addr
	for addr == nil {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			addr = s.transport.Addr()
		}
	}

	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		Logger.Warningf("mDNS needs a tcp listener, not advertising %s", addr)
		return
	}

	names := make([]string, 0, len(s.config.Databases))
	for _, db := range s.config.Databases {
		names = append(names, db.Name)
	}

	shutdown, err := discovery.Advertise("", tcpAddr.Port, s.config.Transport.Type, names)
	if err != nil {
		Logger.Errorf("failed to advertise server: %v", err)
		return
	}

	s.mu.Lock()
	s.mdnsShutdown = shutdown
	s.mu.Unlock()
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// observe records a handled request
func observe(msgType common.MessageType, resp *common.Message, took time.Duration) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dql_rpc_requests_total{type=%q}`, msgType)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dql_rpc_request_duration_seconds{type=%q}`, msgType)).Update(took.Seconds())
	if resp.MsgType == common.MsgTError {
		metrics.GetOrCreateCounter(fmt.Sprintf(`dql_rpc_errors_total{type=%q,sqlstate=%q}`, msgType, resp.SQLState)).Inc()
	}
}
