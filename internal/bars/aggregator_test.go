package bars

import (
	"context"
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/clock"
	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/internal/validate"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedClock struct{ now time.Time }

func (f *fixedClock) Now() time.Time { return f.now }

func newTestAggregator(t *testing.T, clk clock.Clock) *Aggregator {
	t.Helper()
	logger := zap.NewNop()
	reg := tasks.New(logger)
	bus := eventbus.New(logger, reg)
	v := validate.New(validate.DefaultConfig(), money.MustNew("0.25"))
	cfg := Config{
		Timeframes:   []Timeframe{{Name: "1m", Period: time.Minute}},
		RingCapacity: 100,
	}
	return New(cfg, "ES", money.MustNew("0.25"), time.UTC, v, bus, reg, logger, clk)
}

func TestAggregator_OnTrade_OpensNewBar(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	clk := &fixedClock{now: start}
	a := newTestAggregator(t, clk)

	require.NoError(t, a.OnTrade(context.Background(), a.timeframesFor("1m"), money.MustNew("5100.25"), 2, start))

	bars, err := a.GetBars("1m", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Open.Equal(money.MustNew("5100.25")))
	assert.Equal(t, int64(2), bars[0].Volume)
}

func TestAggregator_OnTrade_UpdatesOpenBarWithinBucket(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	clk := &fixedClock{now: start}
	a := newTestAggregator(t, clk)
	tfs := a.timeframesFor("1m")

	require.NoError(t, a.OnTrade(context.Background(), tfs, money.MustNew("5100"), 1, start))
	clk.now = start.Add(10 * time.Second)
	require.NoError(t, a.OnTrade(context.Background(), tfs, money.MustNew("5101"), 3, clk.now))

	bars, err := a.GetBars("1m", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Open.Equal(money.MustNew("5100")))
	assert.True(t, bars[0].Close.Equal(money.MustNew("5101")))
	assert.True(t, bars[0].High.Equal(money.MustNew("5101")))
	assert.Equal(t, int64(4), bars[0].Volume)
	assert.Equal(t, int64(2), bars[0].TradeCount)
}

func TestAggregator_OnTrade_NewBucketClosesPrior(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	clk := &fixedClock{now: start}
	a := newTestAggregator(t, clk)
	tfs := a.timeframesFor("1m")

	require.NoError(t, a.OnTrade(context.Background(), tfs, money.MustNew("5100"), 1, start))
	clk.now = start.Add(90 * time.Second)
	require.NoError(t, a.OnTrade(context.Background(), tfs, money.MustNew("5102"), 1, clk.now))

	bars, err := a.GetBars("1m", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Close.Equal(money.MustNew("5100")))
	assert.True(t, bars[1].Open.Equal(money.MustNew("5102")))
}

func TestAggregator_CurrentPrice_FallsBackToLastBarClose(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	clk := &fixedClock{now: start}
	a := newTestAggregator(t, clk)

	_, ok := a.CurrentPrice()
	assert.False(t, ok)

	require.NoError(t, a.OnTrade(context.Background(), a.timeframesFor("1m"), money.MustNew("5100"), 1, start))
	price, ok := a.CurrentPrice()
	require.True(t, ok)
	assert.True(t, price.Equal(money.MustNew("5100")))

	// With no last-trade price recorded, the 1m bar's close is used.
	a.lastTradeMu.Lock()
	a.lastTrade = money.Zero
	a.lastTradeMu.Unlock()
	price, ok = a.CurrentPrice()
	require.True(t, ok)
	assert.True(t, price.Equal(money.MustNew("5100")))
}

func TestAggregator_GetBars_UnknownTimeframe(t *testing.T) {
	a := newTestAggregator(t, &fixedClock{now: time.Now()})
	_, err := a.GetBars("5m", 1)
	assert.Error(t, err)
}

// timeframesFor is a small test helper building the Timeframe slice the
// caller passes to OnTrade for named timeframes already configured on a.
func (a *Aggregator) timeframesFor(names ...string) []Timeframe {
	out := make([]Timeframe, 0, len(names))
	for _, n := range names {
		if n == "1m" {
			out = append(out, Timeframe{Name: "1m", Period: time.Minute})
		}
	}
	return out
}
