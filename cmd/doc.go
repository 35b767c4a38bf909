// Package cmd implements the command-line interface of dQL. It provides
// commands for running the query server and for working with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the query server
//   - query: Runs single statements (query) and the interactive shell (shell)
//   - discover: Lists servers announced via mDNS
//   - bench: Performance tests against a running server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dql -help for a list of all commands.
package cmd
