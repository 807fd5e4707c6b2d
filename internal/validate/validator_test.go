package validate

import (
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/stretchr/testify/assert"
)

func TestPrice_SnapsToTick(t *testing.T) {
	v := New(DefaultConfig(), money.MustNew("0.25"))
	aligned, rejected := v.Price(money.MustNew("5137.62"))
	assert.False(t, rejected)
	assert.True(t, aligned.Equal(money.MustNew("5137.50")))
	assert.Equal(t, int64(1), v.Tally().Snapshot()[ReasonPriceSnapped])
}

func TestPrice_RejectsOutOfAbsoluteRange(t *testing.T) {
	v := New(DefaultConfig(), money.MustNew("0.25"))
	_, rejected := v.Price(money.MustNew("-1"))
	assert.True(t, rejected)
}

func TestPrice_RejectsAnomalyOutsideBand(t *testing.T) {
	v := New(DefaultConfig(), money.MustNew("0.25"))
	for i := 0; i < 50; i++ {
		v.Price(money.MustNew("100.00"))
	}
	_, rejected := v.Price(money.MustNew("1000.00"))
	assert.True(t, rejected)
	assert.Equal(t, int64(1), v.Tally().Snapshot()[ReasonPriceAnomaly])
}

func TestVolume_RejectsNegativeAndOverMax(t *testing.T) {
	v := New(DefaultConfig(), money.MustNew("0.25"))
	assert.True(t, v.Volume(-1))
	assert.True(t, v.Volume(2_000_000))
	assert.False(t, v.Volume(10))
}

func TestTimestamp_RejectsStale(t *testing.T) {
	v := New(DefaultConfig(), money.MustNew("0.25"))
	now := time.Now()
	assert.True(t, v.Timestamp(now.Add(-time.Hour), now))
	assert.True(t, v.Timestamp(now.Add(time.Hour), now))
	assert.False(t, v.Timestamp(now, now))
}

func TestQuote_RejectsCrossedAndWideSpread(t *testing.T) {
	v := New(DefaultConfig(), money.MustNew("0.25"))
	assert.True(t, v.Quote(money.MustNew("101"), money.MustNew("100")))
	assert.False(t, v.Quote(money.MustNew("100.00"), money.MustNew("100.25")))
}
