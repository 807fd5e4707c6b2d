// Package bars builds OHLCV bars from the trade stream for N configured
// timeframes concurrently, with overflow-to-disk once a timeframe's ring
// buffer fills.
package bars

import (
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// Bar is one OHLCV candle. BucketStart is the DST-safe, tick-aligned
// wall-clock start of the bucket.
type Bar struct {
	BucketStart time.Time
	Open        money.Decimal
	High        money.Decimal
	Low         money.Decimal
	Close       money.Decimal
	Volume      int64
	TradeCount  int64
}

// Closed reports whether wall-clock now has reached the end of the bar's
// bucket (bucket_start + timeframe).
func (b Bar) Closed(timeframe time.Duration, now time.Time) bool {
	return !now.Before(b.BucketStart.Add(timeframe))
}

// Valid checks the OHLC ordering invariants (High is the max, Low is
// the min, volume is non-negative).
func (b Bar) Valid() bool {
	if b.Volume < 0 {
		return false
	}
	if b.High.LessThan(b.Open) || b.High.LessThan(b.Close) || b.High.LessThan(b.Low) {
		return false
	}
	if b.Low.GreaterThan(b.Open) || b.Low.GreaterThan(b.Close) {
		return false
	}
	return true
}

// emptyBar builds a zero-volume continuation bar carrying priorClose
// forward as O=H=L=C.
func emptyBar(bucketStart time.Time, priorClose money.Decimal) Bar {
	return Bar{
		BucketStart: bucketStart,
		Open:        priorClose,
		High:        priorClose,
		Low:         priorClose,
		Close:       priorClose,
		Volume:      0,
		TradeCount:  0,
	}
}
