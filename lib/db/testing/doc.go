// Package testing provides standardised tests and benchmarks for
// engine implementations that satisfy the db.Engine interface.
//
// The package contains:
//   - testing: A conformance suite for the Engine, Txn and Cursor contract
//     (visibility, row locks, deadlocks, cursors, two-phase commit)
//   - benchmark: Performance tests for the common engine operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() (db.Engine, error) {
//		return NewMyEngine(t.TempDir())
//	}
//
//	// Running the standard test suite
//	dbtesting.RunEngineTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunEngineBenchmarks(b, "MyEngine", factory)
package testing
