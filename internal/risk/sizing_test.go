package risk

import (
	"testing"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/stretchr/testify/assert"
)

func TestPositionSize_CapsToRiskBudget(t *testing.T) {
	// $100,000 equity, 1% risk = $1000 budget. 4-tick stop at $12.50/tick
	// value = $50 risk per contract, so 20 contracts.
	size := PositionSize(
		money.MustNew("100000"),
		money.MustNew("0.01"),
		money.MustNew("5100"),
		money.MustNew("5096"),
		money.MustNew("1"),
		money.MustNew("12.50"),
	)
	assert.Equal(t, money.Size(20), size)
}

func TestPositionSize_ZeroOnZeroStopDistance(t *testing.T) {
	size := PositionSize(
		money.MustNew("100000"), money.MustNew("0.01"),
		money.MustNew("5100"), money.MustNew("5100"),
		money.MustNew("0.25"), money.MustNew("12.50"),
	)
	assert.Equal(t, money.Size(0), size)
}

func TestPositionSize_ZeroOnZeroTick(t *testing.T) {
	size := PositionSize(
		money.MustNew("100000"), money.MustNew("0.01"),
		money.MustNew("5100"), money.MustNew("5096"),
		money.Zero, money.MustNew("12.50"),
	)
	assert.Equal(t, money.Size(0), size)
}

func TestPositionSize_TruncatesDownRatherThanRoundingUp(t *testing.T) {
	// Risk budget of $1049 at $50/contract risk truncates to 20, not 21.
	size := PositionSize(
		money.MustNew("104900"), money.MustNew("0.01"),
		money.MustNew("5100"), money.MustNew("5096"),
		money.MustNew("1"), money.MustNew("12.50"),
	)
	assert.Equal(t, money.Size(20), size)
}
