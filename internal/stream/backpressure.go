package stream

import "sync"

// DepthCoalescer merges rapid-fire depth updates for the same (price,
// side) key, keeping only the latest volume.
type DepthCoalescer struct {
	mu     sync.Mutex
	latest map[string]DepthUpdate
}

// DepthUpdate is the coalesced unit: one side, one price, its latest
// volume and the sequence it was last touched at.
type DepthUpdate struct {
	Side   string
	Price  string
	Volume int64
	Seq    uint64
}

func NewDepthCoalescer() *DepthCoalescer {
	return &DepthCoalescer{latest: make(map[string]DepthUpdate)}
}

// Merge folds update into the coalescer, overwriting any pending update
// for the same (side, price) key.
func (c *DepthCoalescer) Merge(u DepthUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[u.Side+"|"+u.Price] = u
}

// Drain removes and returns every pending coalesced update.
func (c *DepthCoalescer) Drain() []DepthUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DepthUpdate, 0, len(c.latest))
	for _, u := range c.latest {
		out = append(out, u)
	}
	c.latest = make(map[string]DepthUpdate)
	return out
}

// TradeSampler keeps the most recent 30% of trades verbatim and samples
// the older 70% at a rate that brings a buffer back under its soft cap.
// It operates on an already-ordered batch (oldest first).
type TradeSampler struct {
	RecentFraction float64 // default 0.30
}

func NewTradeSampler() TradeSampler { return TradeSampler{RecentFraction: 0.30} }

// Sample returns the indices of trades (in original order) to keep, given
// a target utilization reduction to targetFraction of the input length
// (e.g. 0.5 to roughly halve). The newest RecentFraction of the batch is
// always kept verbatim; the remainder is downsampled evenly.
func (s TradeSampler) Sample(n int, targetFraction float64) []int {
	if n == 0 {
		return nil
	}
	if targetFraction <= 0 {
		targetFraction = 1
	}
	recentCut := n - int(float64(n)*s.RecentFraction)
	if recentCut < 0 {
		recentCut = 0
	}
	older := recentCut
	target := int(float64(n) * targetFraction)
	keepFromOlder := target - (n - recentCut)
	if keepFromOlder < 0 {
		keepFromOlder = 0
	}
	if keepFromOlder > older {
		keepFromOlder = older
	}

	kept := make([]int, 0, n)
	if older > 0 && keepFromOlder > 0 {
		stride := float64(older) / float64(keepFromOlder)
		for i := 0; i < keepFromOlder; i++ {
			idx := int(float64(i) * stride)
			if idx >= older {
				idx = older - 1
			}
			kept = append(kept, idx)
		}
	}
	for i := recentCut; i < n; i++ {
		kept = append(kept, i)
	}
	return kept
}
