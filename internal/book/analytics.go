package book

import (
	"sort"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// ImbalanceDirection labels the signed imbalance ratio.
type ImbalanceDirection string

const (
	Bullish ImbalanceDirection = "Bullish"
	Bearish ImbalanceDirection = "Bearish"
	Neutral ImbalanceDirection = "Neutral"
)

// Confidence grades how many levels agree with the imbalance's sign.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Imbalance is the signed bid/ask volume ratio over the top-k levels.
type Imbalance struct {
	Ratio      float64 // in [-1, 1]; positive favors bids
	Direction  ImbalanceDirection
	Confidence Confidence
}

// neutralBand is the |ratio| threshold below which direction is Neutral.
const neutralBand = 0.05

// Imbalance computes the signed bid/ask imbalance over the top depth
// levels of each side.
func (b *Book) Imbalance(depth int) Imbalance {
	b.mu.RLock()
	bids := b.bid.top(depth)
	asks := b.ask.top(depth)
	b.mu.RUnlock()

	var bidVol, askVol int64
	agree := 0
	for _, l := range bids {
		bidVol += l.Volume
	}
	for _, l := range asks {
		askVol += l.Volume
	}
	total := bidVol + askVol
	if total == 0 {
		return Imbalance{Direction: Neutral, Confidence: ConfidenceLow}
	}
	ratio := float64(bidVol-askVol) / float64(total)

	sign := 1
	if ratio < 0 {
		sign = -1
	}
	levels := len(bids)
	if len(asks) > levels {
		levels = len(asks)
	}
	for i := 0; i < levels; i++ {
		var bv, av int64
		if i < len(bids) {
			bv = bids[i].Volume
		}
		if i < len(asks) {
			av = asks[i].Volume
		}
		levelRatio := bv - av
		if (levelRatio > 0 && sign > 0) || (levelRatio < 0 && sign < 0) {
			agree++
		}
	}

	direction := Neutral
	switch {
	case ratio > neutralBand:
		direction = Bullish
	case ratio < -neutralBand:
		direction = Bearish
	}

	confidence := ConfidenceLow
	if levels > 0 {
		agreement := float64(agree) / float64(levels)
		switch {
		case agreement >= 0.8:
			confidence = ConfidenceHigh
		case agreement >= 0.5:
			confidence = ConfidenceMedium
		}
	}
	return Imbalance{Ratio: ratio, Direction: direction, Confidence: confidence}
}

// LiquidityLevel is a persistent price whose lifetime refresh count is
// at least minSamples; Strength sums the volume samples still inside the
// analytics window.
type LiquidityLevel struct {
	Price    money.Decimal
	Side     Side
	Strength int64 // aggregated volume across the window
	Samples  int
}

// LiquidityLevels returns persistent levels (refresh_count >= minSamples)
// sorted by strength descending.
func (b *Book) LiquidityLevels(minSamples int) []LiquidityLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []LiquidityLevel
	collect := func(levels []Level, side Side) {
		for _, l := range levels {
			if l.RefreshCount < minSamples {
				continue
			}
			out = append(out, LiquidityLevel{
				Price:    l.Price,
				Side:     side,
				Strength: l.totalVolume(),
				Samples:  l.RefreshCount,
			})
		}
	}
	collect(b.bid.all(), SideBid)
	collect(b.ask.all(), SideAsk)

	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}
