package stats

import "sort"

// DefaultLatencyBuckets are fixed upper bounds in seconds for operation
// latency histograms, tuned for sub-second trading operations with a
// long tail bucket for outliers.
var DefaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}

// HistogramSnapshot is a read-only view of a histogram's fixed buckets.
// Counts has one more entry than Bounds, the implicit +Inf bucket.
type HistogramSnapshot struct {
	Bounds []float64
	Counts []int64
	Sum    float64
	Count  int64
}

// histogram is a fixed-bucket histogram holding per-bucket (not
// cumulative) counts; exporters accumulate them as needed. Its memory
// footprint never grows with sample count, only with the number of
// configured buckets.
type histogram struct {
	bounds []float64 // ascending upper bounds; +Inf bucket is implicit
	counts []int64   // len(bounds)+1

	sum   float64
	count int64
}

func newHistogram(bounds []float64) *histogram {
	return &histogram{
		bounds: bounds,
		counts: make([]int64, len(bounds)+1),
	}
}

func (h *histogram) observe(v float64) {
	idx := sort.SearchFloat64s(h.bounds, v)
	h.counts[idx]++
	h.sum += v
	h.count++
}

func (h *histogram) snapshot() HistogramSnapshot {
	bounds := append([]float64(nil), h.bounds...)
	counts := append([]int64(nil), h.counts...)
	return HistogramSnapshot{Bounds: bounds, Counts: counts, Sum: h.sum, Count: h.count}
}
