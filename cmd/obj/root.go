package obj

import (
	"github.com/ValentinKolb/objstore/cmd/util"
	"github.com/ValentinKolb/objstore/lib/store/datastore"
	"github.com/spf13/cobra"
	"time"
)

var (
	ds *datastore.Store

	// ObjectCommands represents the object command group
	ObjectCommands = &cobra.Command{
		Use:                "obj",
		Short:              "Create, read, write and remove objects",
		PersistentPreRunE:  openStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(ObjectCommands)

	// Add subcommands
	ObjectCommands.AddCommand(createCmd)
	ObjectCommands.AddCommand(getCmd)
	ObjectCommands.AddCommand(setCmd)
	ObjectCommands.AddCommand(rmCmd)
}

func openStore(cmd *cobra.Command, _ []string) (err error) {
	ds, err = util.OpenStore(cmd)
	return err
}

func closeStore(_ *cobra.Command, _ []string) error {
	return util.CloseStore(ds, 5*time.Second)
}
