package info

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ValentinKolb/objstore/cmd/util"
	"github.com/spf13/cobra"
)

// InfoCmd prints the configuration and statistics of a data store
var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print configuration and statistics of the data store",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(InfoCmd)

	key := "metrics"
	InfoCmd.Flags().Bool(key, false, util.WrapString("Also print the store metrics in the Prometheus text format"))
}

func run(cmd *cobra.Command, _ []string) error {
	ds, err := util.OpenStore(cmd)
	if err != nil {
		return err
	}

	fmt.Println(ds)
	fmt.Println(ds.Config().String())

	info := ds.Info()
	fmt.Println("ENGINE")
	fmt.Printf("  %-22s: %s\n", "Type", info.DbType)
	fmt.Printf("  %-22s: %d bytes\n", "Size", info.SizeBytes)
	keys := make([]string, 0, len(info.Metadata))
	for k := range info.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-22s: %v\n", k, info.Metadata[k])
	}

	if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
		fmt.Println()
		ds.WriteMetrics(os.Stdout)
	}

	return util.CloseStore(ds, 5*time.Second)
}
