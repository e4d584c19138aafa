// Package util provides small helpers shared by the engines and the store.
//
// The package contains:
//   - statistics: a SizeHistogram for tracking the size distribution of
//     stored values without keeping the samples
package util
