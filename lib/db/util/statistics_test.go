package util

import (
	"sync"
	"testing"
)

func TestSizeHistogramEmpty(t *testing.T) {
	h := NewSizeHistogram()
	if h.Count() != 0 || h.AverageSize() != 0 || h.PercentileEstimate(50) != 0 {
		t.Errorf("Expected zero values for empty histogram")
	}
}

func TestSizeHistogramEstimates(t *testing.T) {
	h := NewSizeHistogram()
	for i := 0; i < 99; i++ {
		h.AddSample(100) // bucket (64, 256]
	}
	h.AddSample(1 << 20) // bucket (262144, 1048576]

	if h.Count() != 100 {
		t.Errorf("Expected 100 samples, got %d", h.Count())
	}
	if got := h.PercentileEstimate(50); got != (64+256)/2 {
		t.Errorf("Expected p50 estimate %d, got %d", (64+256)/2, got)
	}
	if got := h.PercentileEstimate(100); got != (262144+1048576)/2 {
		t.Errorf("Expected p100 estimate %d, got %d", (262144+1048576)/2, got)
	}
	if h.MaxSize() != 1<<20 {
		t.Errorf("Expected max %d, got %d", 1<<20, h.MaxSize())
	}
	if got := h.PercentileEstimate(101); got != 0 {
		t.Errorf("Expected 0 for invalid percentile, got %d", got)
	}

	h.Reset()
	if h.Count() != 0 || h.MaxSize() != 0 {
		t.Errorf("Expected empty histogram after Reset")
	}
}

func TestSizeHistogramLargeAndZero(t *testing.T) {
	h := NewSizeHistogram()
	h.AddSample(0)
	h.AddSample(8 << 30)
	if got := h.PercentileEstimate(100); got != 4294967296*2 {
		t.Errorf("Expected estimate for the overflow bucket, got %d", got)
	}
	if got := h.PercentileEstimate(1); got != 8 {
		t.Errorf("Expected estimate for the first bucket, got %d", got)
	}
}

func TestSizeHistogramConcurrent(t *testing.T) {
	h := NewSizeHistogram()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.AddSample(i)
			}
		}()
	}
	wg.Wait()
	if h.Count() != 8000 {
		t.Errorf("Expected 8000 samples, got %d", h.Count())
	}
}
