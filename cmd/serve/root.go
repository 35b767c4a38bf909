package serve

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/dQL/cmd/util"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/server"
	"github.com/ValentinKolb/dQL/rpc/transport"
	"github.com/ValentinKolb/dQL/rpc/transport/http"
	"github.com/ValentinKolb/dQL/rpc/transport/tcp"
	"github.com/ValentinKolb/dQL/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dQL query server",
		Long:    `Start the dQL query server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DQL_<flag> (e.g. DQL_RESULT_IDLE=600)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "databases"
	ServeCmd.PersistentFlags().String(key, "default=mem", cmdUtil.WrapString("Comma-separated list of virtual databases to serve. Format: NAME=TYPE[:DSN] where TYPE is one of: mem, sqlite3, mysql, postgres. For mem the DSN is an optional sql script that seeds the database"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/dql.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 30, cmdUtil.WrapString("Timeout in seconds for a single request (0 disables it)"))

	key = "result-idle"
	ServeCmd.PersistentFlags().Int64(key, 300, cmdUtil.WrapString("Open results that were not fetched for this many seconds are released (0 keeps them until closed)"))

	key = "max-fetch-size"
	ServeCmd.PersistentFlags().Int64(key, 10000, cmdUtil.WrapString("Upper bound for the rows per batch a client may request"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 4, cmdUtil.WrapString("Requests handled in parallel per connection (tcp and unix only)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket buffers (in KB, ignored for http)"))

	key = "mdns"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Announce the server and its databases via mDNS (tcp and http only)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// parse databases
	serveCmdConfig.Databases = []common.ServerDatabase{}
	for _, def := range strings.Split(viper.GetString("databases"), ",") {
		db, err := common.ParseServerDatabase(strings.TrimSpace(def))
		if err != nil {
			return err
		}
		serveCmdConfig.Databases = append(serveCmdConfig.Databases, db)
	}

	bufferSize := viper.GetInt("buffer-size") * 1024

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Type:           viper.GetString("transport"),
		Endpoint:       viper.GetString("endpoint"),
		BufferSize:     bufferSize,
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		SocketConf: common.SocketConf{
			WriteBufferSize: bufferSize,
			ReadBufferSize:  bufferSize,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
	}
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.ResultIdleSecond = viper.GetInt64("result-idle")
	serveCmdConfig.MaxFetchSize = viper.GetInt64("max-fetch-size")
	serveCmdConfig.MDNS = viper.GetBool("mdns")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return cmdUtil.InitLogging()
}

// run starts the query server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch serveCmdConfig.Transport.Type {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport()
	case "unix":
		t = unix.NewUnixServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", serveCmdConfig.Transport.Type)
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		server.Logger.Infof("shutting down")
		_ = serv.Close()
	}()

	return serv.Serve()
}
