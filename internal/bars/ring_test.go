package bars

import (
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barAt(minute int) Bar {
	return Bar{
		BucketStart: time.Date(2026, 1, 5, 9, minute, 0, 0, time.UTC),
		Open:        money.MustNew("100"),
		High:        money.MustNew("100"),
		Low:         money.MustNew("100"),
		Close:       money.MustNew("100"),
		Volume:      1,
	}
}

func TestRing_PushBelowThresholdNoFlush(t *testing.T) {
	r := NewRing(10)
	for i := 0; i < 7; i++ {
		toFlush := r.Push(barAt(i))
		assert.Nil(t, toFlush)
	}
}

func TestRing_PushFlushesOldestHalfAtThreshold(t *testing.T) {
	r := NewRing(10)
	var lastFlush []Bar
	for i := 0; i < 8; i++ {
		lastFlush = r.Push(barAt(i))
	}
	require.NotNil(t, lastFlush)
	assert.Len(t, lastFlush, 4)
	assert.Len(t, r.Snapshot(), 4)
}

func TestRing_ReplaceLast(t *testing.T) {
	r := NewRing(10)
	r.Push(barAt(0))
	updated := barAt(0)
	updated.Close = money.MustNew("101")
	r.ReplaceLast(updated)

	last, ok := r.Last()
	require.True(t, ok)
	assert.True(t, last.Close.Equal(money.MustNew("101")))
}

func TestRing_ReplaceLastOnEmptyAppends(t *testing.T) {
	r := NewRing(10)
	r.ReplaceLast(barAt(0))
	assert.Len(t, r.Snapshot(), 1)
}

func TestRing_Tail(t *testing.T) {
	r := NewRing(10)
	for i := 0; i < 5; i++ {
		r.Push(barAt(i))
	}
	tail := r.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, 3, tail[0].BucketStart.Minute())
	assert.Equal(t, 4, tail[1].BucketStart.Minute())
}

func TestRing_TailMoreThanAvailable(t *testing.T) {
	r := NewRing(10)
	r.Push(barAt(0))
	assert.Len(t, r.Tail(5), 1)
}
