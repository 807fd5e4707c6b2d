package stats

import (
	"sync"
	"time"
)

// Collector is the push-only tap interface a component depends on to
// record its own activity; it never blocks a hot path beyond a short
// critical section and never reads back what it recorded.
type Collector interface {
	RecordOperation(op string)
	RecordError(kind string)
	RecordLatency(op string, d time.Duration)
	SetGauge(name string, v float64)
}

// ComponentSnapshot is a consistent point-in-time read of one
// component's counters, histograms and gauges.
type ComponentSnapshot struct {
	Name       string
	Operations map[string]int64
	Errors     map[string]int64
	Latencies  map[string]HistogramSnapshot
	Gauges     map[string]float64
	CapturedAt time.Time
}

// ComponentStats is the concrete Collector every component holds. A
// single read-write lock guards the latency histogram map; the counter
// and gauge sets carry their own locks so writers stay short critical
// sections.
type ComponentStats struct {
	name    string
	buckets []float64

	operations *counterSet
	errors     *counterSet
	gauges     *gaugeSet

	mu        sync.RWMutex
	latencies map[string]*histogram
}

func newComponentStats(name string, buckets []float64) *ComponentStats {
	return &ComponentStats{
		name:       name,
		buckets:    buckets,
		operations: newCounterSet(),
		errors:     newCounterSet(),
		gauges:     newGaugeSet(),
		latencies:  make(map[string]*histogram),
	}
}

// RecordOperation tallies one occurrence of op.
func (c *ComponentStats) RecordOperation(op string) { c.operations.inc(op) }

// RecordError tallies one occurrence of an error of the given kind.
func (c *ComponentStats) RecordError(kind string) { c.errors.inc(kind) }

// RecordLatency observes d against op's histogram, lazily creating it
// with the component's configured buckets on first use.
func (c *ComponentStats) RecordLatency(op string, d time.Duration) {
	c.mu.Lock()
	h, ok := c.latencies[op]
	if !ok {
		h = newHistogram(c.buckets)
		c.latencies[op] = h
	}
	h.observe(d.Seconds())
	c.mu.Unlock()
}

// SetGauge overwrites the last-observed value for name.
func (c *ComponentStats) SetGauge(name string, v float64) { c.gauges.set(name, v) }

// Snapshot returns a consistent read of every counter, histogram and
// gauge this component has recorded.
func (c *ComponentStats) Snapshot() ComponentSnapshot {
	c.mu.RLock()
	latencies := make(map[string]HistogramSnapshot, len(c.latencies))
	for op, h := range c.latencies {
		latencies[op] = h.snapshot()
	}
	c.mu.RUnlock()

	return ComponentSnapshot{
		Name:       c.name,
		Operations: c.operations.snapshot(),
		Errors:     c.errors.snapshot(),
		Latencies:  latencies,
		Gauges:     c.gauges.snapshot(),
		CapturedAt: time.Now(),
	}
}
