package bars

import (
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/stretchr/testify/assert"
)

func TestBar_Closed(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	b := Bar{BucketStart: start}
	assert.False(t, b.Closed(time.Minute, start.Add(30*time.Second)))
	assert.True(t, b.Closed(time.Minute, start.Add(time.Minute)))
	assert.True(t, b.Closed(time.Minute, start.Add(2*time.Minute)))
}

func TestBar_Valid(t *testing.T) {
	good := Bar{
		Open: money.MustNew("100"), High: money.MustNew("101"),
		Low: money.MustNew("99"), Close: money.MustNew("100.5"), Volume: 10,
	}
	assert.True(t, good.Valid())

	badHigh := good
	badHigh.High = money.MustNew("99")
	assert.False(t, badHigh.Valid())

	badLow := good
	badLow.Low = money.MustNew("102")
	assert.False(t, badLow.Valid())

	badVolume := good
	badVolume.Volume = -1
	assert.False(t, badVolume.Valid())
}

func TestEmptyBar_CarriesPriorClose(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 31, 0, 0, time.UTC)
	prior := money.MustNew("4501.25")
	b := emptyBar(start, prior)

	assert.True(t, b.Open.Equal(prior))
	assert.True(t, b.High.Equal(prior))
	assert.True(t, b.Low.Equal(prior))
	assert.True(t, b.Close.Equal(prior))
	assert.Equal(t, int64(0), b.Volume)
	assert.True(t, b.Valid())
}
