package validate

import (
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// Reason enumerates rejection/adjustment tallies the validator produces.
type Reason string

const (
	ReasonFormatInvalid  Reason = "format_invalid"
	ReasonPriceSnapped   Reason = "price_snapped"
	ReasonPriceAnomaly   Reason = "price_anomaly"
	ReasonPriceRange     Reason = "price_range"
	ReasonVolumeRange    Reason = "volume_range"
	ReasonVolumeSpike    Reason = "volume_spike"
	ReasonTimestampStale Reason = "timestamp_stale"
	ReasonTimestampOrder Reason = "timestamp_monotonicity"
	ReasonQuoteCrossed   Reason = "quote_crossed"
	ReasonQuoteSpread    Reason = "quote_spread"
)

// Config holds the absolute/percentage bounds used for sanity checks.
type Config struct {
	MinPrice, MaxPrice   money.Decimal
	MaxVolume            int64
	AnomalyBandFraction  float64 // e.g. 0.5 for +/-50%
	MaxPast, MaxFuture   time.Duration
	MaxSpreadAbsolute    money.Decimal
	MaxSpreadPercent     float64
	VolumeSpikeSigma     float64
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		MinPrice:            money.MustNew("0.01"),
		MaxPrice:            money.MustNew("1000000"),
		MaxVolume:           1_000_000,
		AnomalyBandFraction: 0.5,
		MaxPast:             5 * time.Minute,
		MaxFuture:           5 * time.Second,
		MaxSpreadAbsolute:   money.MustNew("100"),
		MaxSpreadPercent:    0.05,
		VolumeSpikeSigma:    4,
	}
}

// Tally counts rejections/adjustments by reason, per instrument.
type Tally struct {
	mu     sync.Mutex
	counts map[Reason]int64
}

func newTally() *Tally { return &Tally{counts: make(map[Reason]int64)} }

func (t *Tally) bump(r Reason) {
	t.mu.Lock()
	t.counts[r]++
	t.mu.Unlock()
}

// Snapshot returns a copy of the current counts.
func (t *Tally) Snapshot() map[Reason]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Reason]int64, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Validator runs the layered checks for one instrument. A strict
// per-frame latency budget is met by doing only arithmetic and bounded
// map/slice work per frame: no I/O, no locks held across anything but
// the baseline's own short critical section.
type Validator struct {
	cfg       Config
	tick      money.Decimal
	priceBase *RollingBaseline
	volBase   *RollingBaseline
	tally     *Tally

	mu         sync.Mutex
	lastTs     time.Time
}

// New creates a Validator for an instrument with the given tick size.
func New(cfg Config, tick money.Decimal) *Validator {
	return &Validator{
		cfg:       cfg,
		tick:      tick,
		priceBase: NewRollingBaseline(1000),
		volBase:   NewRollingBaseline(1000),
		tally:     newTally(),
	}
}

// Tally exposes the rejection/adjustment counters for statistics export.
func (v *Validator) Tally() *Tally { return v.tally }

// Price validates and tick-aligns price, returning the (possibly
// snapped) value and whether it should be rejected outright as an
// anomaly.
func (v *Validator) Price(price money.Decimal) (aligned money.Decimal, rejected bool) {
	if price.Sign() < 0 || price.LessThan(v.cfg.MinPrice) || price.GreaterThan(v.cfg.MaxPrice) {
		v.tally.bump(ReasonPriceRange)
		return price, true
	}

	aligned, adjusted := money.AlignToTick(price, v.tick)
	if adjusted {
		v.tally.bump(ReasonPriceSnapped)
	}

	pf, _ := aligned.Float64()
	if median, ok := v.priceBase.Median(); ok {
		band := median * v.cfg.AnomalyBandFraction
		if pf < median-band || pf > median+band {
			v.tally.bump(ReasonPriceAnomaly)
			return aligned, true
		}
	}
	v.priceBase.Add(pf)
	return aligned, false
}

// Volume validates a volume/size value; spikes are counted but not
// rejected.
func (v *Validator) Volume(volume int64) (rejected bool) {
	if volume < 0 || volume > v.cfg.MaxVolume {
		v.tally.bump(ReasonVolumeRange)
		return true
	}
	vf := float64(volume)
	if mean, stdDev, ok := v.volBase.MeanStdDev(); ok && stdDev > 0 {
		if vf > mean+v.cfg.VolumeSpikeSigma*stdDev {
			v.tally.bump(ReasonVolumeSpike)
		}
	}
	v.volBase.Add(vf)
	return false
}

// Timestamp validates ts is within [now-MaxPast, now+MaxFuture] and
// monotone (with tolerance) relative to the previous accepted timestamp.
func (v *Validator) Timestamp(ts, now time.Time) (rejected bool) {
	if ts.Before(now.Add(-v.cfg.MaxPast)) || ts.After(now.Add(v.cfg.MaxFuture)) {
		v.tally.bump(ReasonTimestampStale)
		return true
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.lastTs.IsZero() && ts.Before(v.lastTs.Add(-v.cfg.MaxPast)) {
		v.tally.bump(ReasonTimestampOrder)
		return true
	}
	if ts.After(v.lastTs) {
		v.lastTs = ts
	}
	return false
}

// Quote validates bid<=ask and that the spread is within absolute and
// percentage caps.
func (v *Validator) Quote(bid, ask money.Decimal) (rejected bool) {
	if bid.GreaterThan(ask) {
		v.tally.bump(ReasonQuoteCrossed)
		return true
	}
	spread := ask.Sub(bid)
	if spread.GreaterThan(v.cfg.MaxSpreadAbsolute) {
		v.tally.bump(ReasonQuoteSpread)
		return true
	}
	if !ask.IsZero() {
		pct, _ := spread.Div(ask).Float64()
		if pct > v.cfg.MaxSpreadPercent {
			v.tally.bump(ReasonQuoteSpread)
			return true
		}
	}
	return false
}
