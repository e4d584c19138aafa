package bind

import (
	"github.com/ValentinKolb/objstore/cmd/util"
	"github.com/ValentinKolb/objstore/lib/store/datastore"
	"github.com/spf13/cobra"
	"time"
)

var (
	ds *datastore.Store

	// BindingCommands represents the binding command group
	BindingCommands = &cobra.Command{
		Use:                "bind",
		Short:              "Manage name to object id bindings",
		PersistentPreRunE:  openStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(BindingCommands)

	// Add subcommands
	BindingCommands.AddCommand(getCmd)
	BindingCommands.AddCommand(setCmd)
	BindingCommands.AddCommand(rmCmd)
	BindingCommands.AddCommand(lsCmd)
}

func openStore(cmd *cobra.Command, _ []string) (err error) {
	ds, err = util.OpenStore(cmd)
	return err
}

func closeStore(_ *cobra.Command, _ []string) error {
	return util.CloseStore(ds, 5*time.Second)
}
