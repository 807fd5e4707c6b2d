package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignToTick_ES(t *testing.T) {
	tick := MustNew("0.25")

	aligned, adjusted := AlignToTick(MustNew("5137.62"), tick)
	assert.True(t, adjusted)
	assert.True(t, aligned.Equal(MustNew("5137.50")), "got %s", aligned)

	aligned2, adjusted2 := AlignToTick(MustNew("5137.125"), tick)
	assert.True(t, adjusted2)
	assert.True(t, aligned2.Equal(MustNew("5137.00")), "got %s", aligned2)
}

func TestAlignToTick_Idempotent(t *testing.T) {
	tick := MustNew("0.25")
	p := MustNew("5137.62")

	once, _ := AlignToTick(p, tick)
	twice, adjustedAgain := AlignToTick(once, tick)

	assert.True(t, once.Equal(twice))
	assert.False(t, adjustedAgain)
}

func TestIsAligned(t *testing.T) {
	tick := MustNew("0.25")
	assert.True(t, IsAligned(MustNew("5137.50"), tick))
	assert.False(t, IsAligned(MustNew("5137.60"), tick))
}

func TestSizeValidate(t *testing.T) {
	assert.True(t, Size(1).Validate())
	assert.False(t, Size(0).Validate())
	assert.False(t, Size(-1).Validate())
}

func TestSideSignAndOpposite(t *testing.T) {
	assert.Equal(t, int64(1), Buy.Sign())
	assert.Equal(t, int64(-1), Sell.Sign())
	assert.Equal(t, Sell, Buy.Opposite())
}

func TestOffsetPrice_LongBracket(t *testing.T) {
	tick := MustNew("0.25")
	entry := MustNew("5137.50")

	stop := OffsetPrice(entry, tick, 8, -1, Buy)
	target := OffsetPrice(entry, tick, 16, 1, Buy)

	require.True(t, stop.Equal(MustNew("5135.50")), "got %s", stop)
	require.True(t, target.Equal(MustNew("5141.50")), "got %s", target)
	assert.True(t, stop.LessThan(entry))
	assert.True(t, entry.LessThan(target))
}

func TestOffsetPrice_ShortBracket(t *testing.T) {
	tick := MustNew("0.25")
	entry := MustNew("5137.50")

	stop := OffsetPrice(entry, tick, 8, -1, Sell)
	target := OffsetPrice(entry, tick, 16, 1, Sell)

	assert.True(t, stop.GreaterThan(entry))
	assert.True(t, entry.GreaterThan(target))
}

func TestTickValue(t *testing.T) {
	tv := MustNew("12.50")
	got := TickValue(4, tv, Size(2))
	assert.True(t, got.Equal(MustNew("100.00")), "got %s", got)
}
