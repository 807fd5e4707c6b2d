// Package validate implements the layered inbound-frame validator:
// price, volume, timestamp and quote checks on already-decoded values,
// with per-instrument adaptive rolling baselines for price and volume.
// Frame format is checked by the decoders that call it; no check here
// records ReasonFormatInvalid.
package validate

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// RollingBaseline maintains a bounded window of float64 samples and
// derives median/variance on demand using gonum.org/v1/gonum/stat.
type RollingBaseline struct {
	mu     sync.Mutex
	window []float64
	cap    int
	next   int
	filled bool
}

// NewRollingBaseline creates a baseline over the last capacity samples.
func NewRollingBaseline(capacity int) *RollingBaseline {
	return &RollingBaseline{window: make([]float64, capacity), cap: capacity}
}

// Add records a new sample, evicting the oldest once the window is full.
func (b *RollingBaseline) Add(x float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window[b.next] = x
	b.next = (b.next + 1) % b.cap
	if b.next == 0 {
		b.filled = true
	}
}

func (b *RollingBaseline) samplesLocked() []float64 {
	n := b.cap
	if !b.filled {
		n = b.next
	}
	out := make([]float64, n)
	copy(out, b.window[:n])
	return out
}

// Median returns the rolling median, or ok=false with fewer than 2
// samples.
func (b *RollingBaseline) Median() (median float64, ok bool) {
	b.mu.Lock()
	samples := b.samplesLocked()
	b.mu.Unlock()
	if len(samples) < 2 {
		return 0, false
	}
	sort.Float64s(samples)
	return stat.Quantile(0.5, stat.Empirical, samples, nil), true
}

// MeanStdDev returns the rolling mean and standard deviation.
func (b *RollingBaseline) MeanStdDev() (mean, stdDev float64, ok bool) {
	b.mu.Lock()
	samples := b.samplesLocked()
	b.mu.Unlock()
	if len(samples) < 2 {
		return 0, 0, false
	}
	mean, variance := stat.MeanVariance(samples, nil)
	return mean, math.Sqrt(variance), true
}
