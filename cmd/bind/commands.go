package bind

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/objstore/lib/txn"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [name]",
		Short: "Prints the object id bound to a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var oid int64
			err := txn.Run(func(t *txn.Transaction) (err error) {
				oid, err = ds.GetBinding(t, args[0])
				return err
			})
			if err != nil {
				return err
			}
			fmt.Printf("name=%s, oid=%d\n", args[0], oid)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [name] [oid]",
		Short: "Binds a name to an object id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("oid must be a number: %w", err)
			}
			if err := txn.Run(func(t *txn.Transaction) error {
				return ds.SetBinding(t, args[0], oid)
			}); err != nil {
				return err
			}
			fmt.Println("bound successfully")
			return nil
		},
	}
	rmCmd = &cobra.Command{
		Use:   "rm [name]",
		Short: "Removes the binding of a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := txn.Run(func(t *txn.Transaction) error {
				return ds.RemoveBinding(t, args[0])
			}); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "Lists all bindings in name order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return txn.Run(func(t *txn.Transaction) error {
				name, ok, err := ds.FirstBoundName(t)
				for count := 0; ok && (limit <= 0 || count < limit); count++ {
					var oid int64
					if oid, err = ds.GetBinding(t, name); err != nil {
						return err
					}
					fmt.Printf("%s\t%d\n", name, oid)
					name, ok, err = ds.NextBoundName(t, name)
				}
				return err
			})
		},
	}
)

func init() {
	lsCmd.Flags().Int("limit", 0, "Maximum number of bindings to list (0 lists all)")
}
