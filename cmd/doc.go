// Package cmd implements the command-line interface of the objstore data
// store. Every command opens the store in the configured directory, runs its
// operations in one transaction and shuts the store down again.
//
// The package is organized into several subpackages:
//
//   - obj: Commands for object operations (create, get, set, rm)
//   - bind: Commands for name bindings (get, set, rm, ls)
//   - info: Prints the configuration, engine statistics and metrics
//   - perf: Benchmarks against a local store
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See objstore -help for a list of all commands.
package cmd
