package book

import (
	"strconv"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"gonum.org/v1/gonum/stat"
)

// VolumeBucket is one price bucket of the profile.
type VolumeBucket struct {
	Low, High money.Decimal
	Volume    int64
}

// VolumeProfile bucketizes the trade ring by price.
type VolumeProfile struct {
	Buckets           []VolumeBucket
	POC               VolumeBucket // point of control: highest-volume bucket
	ValueAreaLow      money.Decimal
	ValueAreaHigh     money.Decimal
	ValueAreaCoverage float64 // fraction of total volume inside the value area
}

// VolumeProfile computes an n-bin volume profile and its 70% value area
// over the currently recorded trades.
func (b *Book) VolumeProfile(nBins int) VolumeProfile {
	b.mu.RLock()
	trades := b.trades.snapshot()
	b.mu.RUnlock()

	if len(trades) == 0 || nBins <= 0 {
		return VolumeProfile{}
	}

	lowF, _ := trades[0].Price.Float64()
	highF := lowF
	for _, t := range trades {
		pf, _ := t.Price.Float64()
		if pf < lowF {
			lowF = pf
		}
		if pf > highF {
			highF = pf
		}
	}
	if highF == lowF {
		highF = lowF + 1
	}
	width := (highF - lowF) / float64(nBins)

	volumes := make([]float64, nBins)
	for _, t := range trades {
		pf, _ := t.Price.Float64()
		idx := int((pf - lowF) / width)
		if idx >= nBins {
			idx = nBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		volumes[idx] += float64(t.Size)
	}
	total := stat.Sum(volumes)

	buckets := make([]VolumeBucket, nBins)
	for i := range volumes {
		lo := lowF + float64(i)*width
		hi := lo + width
		buckets[i] = VolumeBucket{
			Low:    money.MustNew(formatFloat(lo)),
			High:   money.MustNew(formatFloat(hi)),
			Volume: int64(volumes[i]),
		}
	}

	poc := buckets[0]
	pocIdx := 0
	for i, bk := range buckets {
		if bk.Volume > poc.Volume {
			poc = bk
			pocIdx = i
		}
	}

	lowIdx, highIdx := pocIdx, pocIdx
	covered := volumes[pocIdx]
	target := 0.7 * total
	for covered < target && (lowIdx > 0 || highIdx < nBins-1) {
		expandLow := lowIdx > 0
		expandHigh := highIdx < nBins-1
		if expandLow && (!expandHigh || volumes[lowIdx-1] >= volumes[highIdx+1]) {
			lowIdx--
			covered += volumes[lowIdx]
		} else if expandHigh {
			highIdx++
			covered += volumes[highIdx]
		} else {
			break
		}
	}

	coverage := 0.0
	if total > 0 {
		coverage = covered / total
	}

	return VolumeProfile{
		Buckets:           buckets,
		POC:               poc,
		ValueAreaLow:      buckets[lowIdx].Low,
		ValueAreaHigh:     buckets[highIdx].High,
		ValueAreaCoverage: coverage,
	}
}

// formatFloat renders a bucket boundary computed in float64 back to a
// Decimal string; bucket edges are display/export-boundary values, not
// money arithmetic, so the float64 math above is acceptable here.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 8, 64)
}
