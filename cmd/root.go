package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/objstore/cmd/bind"
	"github.com/ValentinKolb/objstore/cmd/info"
	"github.com/ValentinKolb/objstore/cmd/obj"
	"github.com/ValentinKolb/objstore/cmd/perf"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "objstore",
		Short: "transactional object store",
		Long: fmt.Sprintf(`objstore (v%s)

A persistent, transactional object store written in Go. It stores byte blobs
under numeric object ids and a namespace of name bindings on top of badger,
and takes part in two-phase commits of an external coordinator.

The store configuration can be set via command line flags or environment
variables. The format of the environment variables is OBJSTORE_<flag>
(e.g. OBJSTORE_TXN_TIMEOUT_MS=5000).`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of objstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("objstore v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(obj.ObjectCommands)
	RootCmd.AddCommand(bind.BindingCommands)
	RootCmd.AddCommand(info.InfoCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
