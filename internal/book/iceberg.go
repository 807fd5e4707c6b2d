package book

import (
	"math"
	"sort"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// IcebergConfig tunes the classifier's thresholds.
type IcebergConfig struct {
	MinRefreshes      int     // r_min
	MaxVarianceRatio   float64 // v_max, variance/mean^2
	MinTotalVolume     int64   // V_min
	MinConfidence      float64 // default 0.95
}

// DefaultIcebergConfig matches the documented defaults.
func DefaultIcebergConfig() IcebergConfig {
	return IcebergConfig{MinRefreshes: 10, MaxVarianceRatio: 0.25, MinTotalVolume: 500, MinConfidence: 0.95}
}

// IcebergCandidate is a price level classified as a likely hidden order.
type IcebergCandidate struct {
	Price      money.Decimal
	Side       Side
	Confidence float64
}

// IcebergCandidates scores every tracked level against cfg and returns
// the ones passing, ordered by confidence descending.
func (b *Book) IcebergCandidates(cfg IcebergConfig) []IcebergCandidate {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []IcebergCandidate
	score := func(levels []Level, side Side) {
		for _, l := range levels {
			if l.RefreshCount < cfg.MinRefreshes {
				continue
			}
			if l.totalVolume() < cfg.MinTotalVolume {
				continue
			}
			mean, variance, ok := l.volumeVariance()
			if !ok || mean == 0 {
				continue
			}
			varianceRatio := variance / (mean * mean)
			if varianceRatio > cfg.MaxVarianceRatio {
				continue
			}
			confidence := icebergConfidence(l.RefreshCount, varianceRatio, cfg.MaxVarianceRatio)
			if confidence < cfg.MinConfidence {
				continue
			}
			out = append(out, IcebergCandidate{Price: l.Price, Side: side, Confidence: confidence})
		}
	}
	score(b.bid.all(), SideBid)
	score(b.ask.all(), SideAsk)

	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

// icebergConfidence blends refresh cadence and visible-size consistency
// into a single [0,1] score: more refreshes and tighter variance both
// push confidence toward 1.
func icebergConfidence(refreshCount int, varianceRatio, maxVarianceRatio float64) float64 {
	cadenceScore := 1 - math.Exp(-float64(refreshCount)/20)
	consistencyScore := 1 - (varianceRatio / maxVarianceRatio)
	if consistencyScore < 0 {
		consistencyScore = 0
	}
	return (cadenceScore + consistencyScore) / 2
}
