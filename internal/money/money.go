// Package money is the sole source of numeric types for anything
// price- or P&L-valued in the suite. float64 never appears on a money
// path; shopspring/decimal backs every value and conversions to float
// happen only at display/export boundaries (see internal/stats).
package money

import (
	"github.com/shopspring/decimal"
)

// Decimal is a re-export so callers only ever import this package for
// money arithmetic, never shopspring/decimal directly.
type Decimal = decimal.Decimal

// Zero is the canonical zero value.
var Zero = decimal.Zero

// New builds a Decimal from a string, the only safe way to construct an
// exact literal (float literals would reintroduce binary rounding).
func New(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

// MustNew panics on parse failure; reserved for constants and tests.
func MustNew(s string) Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromInt builds an exact Decimal from a whole number, the safe way to
// turn a lot size or contract count into a money value for weighting
// or scaling arithmetic.
func FromInt(v int64) Decimal {
	return decimal.NewFromInt(v)
}

// RoundingMode names a rounding strategy for tick alignment.
type RoundingMode int

const (
	// RoundHalfEven is banker's rounding, the only mode used for tick
	// alignment.
	RoundHalfEven RoundingMode = iota
)

// AlignToTick rounds price to the nearest exact multiple of tick using
// half-to-even rounding, and reports whether an adjustment was made.
// AlignToTick(AlignToTick(p)) == AlignToTick(p) for any p (idempotent).
func AlignToTick(price, tick Decimal) (aligned Decimal, adjusted bool) {
	if tick.IsZero() {
		return price, false
	}
	quotient := price.Div(tick)
	rounded := quotient.RoundBank(0)
	aligned = rounded.Mul(tick)
	return aligned, !aligned.Equal(price)
}

// IsAligned reports whether price is an exact integer multiple of tick.
func IsAligned(price, tick Decimal) bool {
	if tick.IsZero() {
		return true
	}
	quotient := price.Div(tick)
	return quotient.Equal(quotient.Truncate(0))
}

// Size is a positive contract count. Zero is the sentinel for "flat" and
// is never a valid order size; constructors reject it explicitly.
type Size int64

// Validate reports an error-free positive size.
func (s Size) Validate() bool { return s > 0 }

// Side encodes order/position direction.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// Sign returns +1 for Buy, -1 for Sell; used to build signed fill deltas.
func (s Side) Sign() int64 {
	if s == Buy {
		return 1
	}
	return -1
}

// Opposite returns the other side, used when computing OCO/bracket
// protective order sides relative to the entry.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TickValue returns the currency value of n ticks at tickValue per tick
// per contract, scaled by size.
func TickValue(ticks int64, tickValue Decimal, size Size) Decimal {
	return tickValue.Mul(decimal.NewFromInt(ticks)).Mul(decimal.NewFromInt(int64(size)))
}

// OffsetPrice computes a protective price `ticks` away from base in the
// direction implied by side: for a long entry the stop is below and the
// target is above, so callers pass a signed `direction` of -1 (stop) or
// +1 (target) relative to side.Sign().
func OffsetPrice(base, tick Decimal, ticks int64, direction int64, side Side) Decimal {
	signed := direction * side.Sign()
	delta := tick.Mul(decimal.NewFromInt(ticks * signed))
	return base.Add(delta)
}
