package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dQL/cmd/bench"
	"github.com/ValentinKolb/dQL/cmd/discover"
	"github.com/ValentinKolb/dQL/cmd/query"
	"github.com/ValentinKolb/dQL/cmd/serve"
	"github.com/ValentinKolb/dQL/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dql",
		Short: "query server and client with scrollable, batched results",
		Long: fmt.Sprintf(`dQL (v%s)

A query server and database/sql driver written in Go. Results are kept
open on the server and read by the client in batches, which allows
scrolling through large results without loading them at once.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dQL",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dQL v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(query.QueryCmd)
	RootCmd.AddCommand(query.ShellCmd)
	RootCmd.AddCommand(discover.DiscoverCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer of the server (json, gob, binary), clients set it in the dsn"))
	key = "compression"
	RootCmd.PersistentFlags().String(key, "none", util.WrapString("compression of the server messages (none, snappy, zstd, lz4), a compressing server reads every algorithm"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport of the server (http, tcp, unix), clients set it in the dsn"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("level at which logs are written to stderr (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
