package obj

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/objstore/lib/store"
	"github.com/ValentinKolb/objstore/lib/txn"
	"github.com/spf13/cobra"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [value]",
		Short: "Creates a new object and prints its id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := []byte{}
			if len(args) == 1 {
				value = []byte(args[0])
			}
			near := store.NearUnspecified
			if n, _ := cmd.Flags().GetInt64("near"); n >= 0 {
				near = store.NearID(n)
			}
			var oid int64
			err := txn.Run(func(t *txn.Transaction) (err error) {
				if oid, err = ds.CreateObjectNear(t, near); err != nil {
					return err
				}
				return ds.SetObject(t, oid, value)
			})
			if err != nil {
				return err
			}
			fmt.Printf("created object oid=%d\n", oid)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [oid]",
		Short: "Reads the value of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[0])
			if err != nil {
				return err
			}
			var data []byte
			err = txn.Run(func(t *txn.Transaction) (err error) {
				data, err = ds.GetObject(t, oid, false)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Printf("oid=%d, size=%d, value=%s\n", oid, len(data), data)
			return nil
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [oid] [value]",
		Short: "Sets the value of an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[0])
			if err != nil {
				return err
			}
			if err := txn.Run(func(t *txn.Transaction) error {
				return ds.SetObject(t, oid, []byte(args[1]))
			}); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	rmCmd = &cobra.Command{
		Use:   "rm [oid]",
		Short: "Removes an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[0])
			if err != nil {
				return err
			}
			if err := txn.Run(func(t *txn.Transaction) error {
				return ds.RemoveObject(t, oid)
			}); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
)

func init() {
	createCmd.Flags().Int64("near", -1, "Place the new object close to this object id")
}

func parseOID(s string) (int64, error) {
	oid, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("oid must be a number: %w", err)
	}
	return oid, nil
}
