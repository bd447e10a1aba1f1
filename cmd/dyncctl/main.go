// Command dyncctl is a reference operator CLI for the sync engine: it
// wires a sqlstore database and a set of HTTP table adapters into a
// controller.Controller and exposes the engine's host-facing operations
// (enable, sync-once, first-load, status, credentials) as subcommands.
//
// Grounded on cmd/gosynctasks/main.go's cobra root wiring and
// background_sync.go/sync.go/credentials.go's subcommand layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dyncctl",
		Short:         "Operate a dync sync engine instance",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "optional YAML config file (flags take precedence over it)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "sqlstore database path (empty: XDG default)")
	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "base URL of the remote; each table is synced at <base-url>/<table>")
	root.PersistentFlags().StringSliceVar(&flags.tables, "table", nil, "table name to sync (repeatable)")
	root.PersistentFlags().StringVar(&flags.adapterName, "adapter-name", "default", "adapter name credentials are resolved under")
	root.PersistentFlags().BoolVar(&flags.insecureSkipTLS, "insecure-skip-tls", false, "skip TLS certificate verification")
	root.PersistentFlags().Int64Var(&flags.syncIntervalMs, "sync-interval-ms", 2000, "periodic tick interval; 0 disables the periodic tick")
	root.PersistentFlags().StringVar(&flags.minLogLevel, "log-level", "info", "debug|info|warn|error|none")

	root.AddCommand(newEnableCmd())
	root.AddCommand(newSyncOnceCmd())
	root.AddCommand(newFirstLoadCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newCredentialsCmd())

	return root
}

// cliFlags collects the persistent flags every subcommand reads to build
// an engine instance. A package-level var (rather than threading a
// struct through every RunE) matches the teacher's own use of
// package-level cobra flag variables in cmd/gosynctasks/sync.go.
var flags struct {
	configPath      string
	dbPath          string
	baseURL         string
	tables          []string
	adapterName     string
	insecureSkipTLS bool
	syncIntervalMs  int64
	minLogLevel     string
}
