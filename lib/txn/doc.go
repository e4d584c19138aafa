// Package txn provides a small in-process coordinator for store transactions.
//
// A Transaction has a random uuid as id and collects the participants that
// join it. Commit uses PrepareAndCommit when only one participant joined and a
// two-phase commit otherwise. Participants that report themselves read-only in
// Prepare are not committed.
//
// Usage:
//
//	err := txn.Run(func(t *txn.Transaction) error {
//		oid, err := ds.CreateObject(t)
//		if err != nil {
//			return err
//		}
//		return ds.SetObject(t, oid, []byte("hello"))
//	})
package txn
