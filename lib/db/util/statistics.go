package util

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// sizeBoundaries are the upper bounds of the histogram buckets, from 16 bytes to 4 GiB.
// The last bucket holds all larger samples.
var sizeBoundaries = []int{
	16, 64, 256, 1024, 4096, // 16B to 4KB
	16384, 65536, 262144, 1048576, // 16KB to 1MB
	4194304, 16777216, 67108864, // 4MB to 64MB
	268435456, 1073741824, 4294967296, // 256MB to 4GB
}

// SizeHistogram tracks the distribution of value sizes in exponential buckets.
// It gives cheap estimates (mean, percentiles) without keeping the samples.
type SizeHistogram struct {
	mutex   sync.RWMutex
	buckets []int64 // one bucket per boundary plus one for larger values
	count   int64
	sum     int64
	max     int
}

// NewSizeHistogram creates an empty histogram
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		buckets: make([]int64, len(sizeBoundaries)+1),
	}
}

// bucketIndex returns the index of the smallest bucket whose bound is >= size
func bucketIndex(size int) int {
	return sort.SearchInts(sizeBoundaries, size)
}

// AddSample adds a size sample to the histogram
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) AddSample(size int) {
	if size < 0 {
		size = 0
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.buckets[bucketIndex(size)]++
	h.count++
	h.sum += int64(size)
	if size > h.max {
		h.max = size
	}
}

// Count returns the total number of samples
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) Count() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// AverageSize returns the exact average over all samples
func (h *SizeHistogram) AverageSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MaxSize returns the largest sample seen so far
func (h *SizeHistogram) MaxSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.max
}

// PercentileEstimate returns an estimate for the given percentile (0-100).
// The estimate is the middle of the bucket that contains the percentile.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) PercentileEstimate(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	target := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	if target == 0 {
		target = 1
	}
	var cumulative int64
	for i, n := range h.buckets {
		cumulative += n
		if cumulative < target {
			continue
		}
		switch {
		case i == 0:
			return sizeBoundaries[0] / 2
		case i < len(sizeBoundaries):
			return (sizeBoundaries[i-1] + sizeBoundaries[i]) / 2
		default:
			return sizeBoundaries[len(sizeBoundaries)-1] * 2
		}
	}
	return int(h.sum / h.count)
}

// Reset clears all histogram data
func (h *SizeHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.count, h.sum, h.max = 0, 0, 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// String returns a one line summary, used by the periodic stats log
func (h *SizeHistogram) String() string {
	return fmt.Sprintf("count=%d avg=%d p50~%d p99~%d max=%d",
		h.Count(), h.AverageSize(), h.PercentileEstimate(50), h.PercentileEstimate(99), h.MaxSize())
}
