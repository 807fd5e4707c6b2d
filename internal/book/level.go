// Package book maintains a live bid/ask ladder for one instrument and
// derives market-microstructure analytics from it: imbalance, liquidity
// levels, iceberg candidates, volume profile and a spoofing classifier.
package book

import (
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// Sample is one (timestamp, volume) observation recorded against a
// price level each time it is refreshed.
type Sample struct {
	At     time.Time
	Volume int64
}

// Level is one tracked price in the ladder.
type Level struct {
	Price        money.Decimal
	Volume       int64
	LastUpdate   time.Time
	RefreshCount int
	History      []Sample // bounded ring, oldest first
}

const defaultHistoryCap = 1000

// refresh appends a sample, evicting history older than window and
// capping the ring at defaultHistoryCap entries.
func (l *Level) refresh(volume int64, ts time.Time, window time.Duration) {
	l.Volume = volume
	l.LastUpdate = ts
	l.RefreshCount++
	l.History = append(l.History, Sample{At: ts, Volume: volume})

	cutoff := ts.Add(-window)
	start := 0
	for start < len(l.History) && l.History[start].At.Before(cutoff) {
		start++
	}
	if start > 0 {
		l.History = append([]Sample(nil), l.History[start:]...)
	}
	if len(l.History) > defaultHistoryCap {
		l.History = append([]Sample(nil), l.History[len(l.History)-defaultHistoryCap:]...)
	}
}

// volumeVariance returns the sample variance of recorded volumes, used
// by the iceberg classifier to score visible-size consistency.
func (l *Level) volumeVariance() (mean, variance float64, ok bool) {
	if len(l.History) < 2 {
		return 0, 0, false
	}
	var sum float64
	for _, s := range l.History {
		sum += float64(s.Volume)
	}
	mean = sum / float64(len(l.History))
	var sqDiff float64
	for _, s := range l.History {
		d := float64(s.Volume) - mean
		sqDiff += d * d
	}
	variance = sqDiff / float64(len(l.History)-1)
	return mean, variance, true
}

// totalVolume sums the history's observed volumes.
func (l *Level) totalVolume() int64 {
	var total int64
	for _, s := range l.History {
		total += s.Volume
	}
	return total
}
