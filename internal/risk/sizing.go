// Package risk computes position sizing, runs trailing stops as managed
// tasks, resets daily counters at the configured session start, and
// provides a managed-trade scope that cancels its bracket's still-working
// orders and releases its per-contract slot on every exit path. The scope
// does not close a position that is already filled.
package risk

import (
	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// PositionSize computes the integer contract count that caps realized
// loss at riskFraction of equity if the stop fills exactly at stopPrice,
// given tickValue currency per tick per contract. All arithmetic is
// Decimal throughout; the result is truncated down to the nearest whole
// contract (never rounds up past the risk budget).
func PositionSize(equity, riskFraction money.Decimal, entryPrice, stopPrice, tick, tickValue money.Decimal) money.Size {
	riskBudget := equity.Mul(riskFraction)
	priceDelta := entryPrice.Sub(stopPrice).Abs()
	if priceDelta.IsZero() || tick.IsZero() {
		return 0
	}
	ticksAtRisk := priceDelta.Div(tick)
	valuePerContract := ticksAtRisk.Mul(tickValue)
	if valuePerContract.IsZero() {
		return 0
	}
	contracts := riskBudget.Div(valuePerContract).Truncate(0)
	size, _ := contracts.Float64()
	if size < 0 {
		return 0
	}
	return money.Size(int64(size))
}
