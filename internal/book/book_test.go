package book

import (
	"context"
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBook(t *testing.T) *Book {
	t.Helper()
	logger := zap.NewNop()
	reg := tasks.New(logger)
	bus := eventbus.New(logger, reg)
	return New(DefaultConfig(), "ES", bus)
}

func TestBook_UpdateDepth_CreatesAndPrunesLevels(t *testing.T) {
	b := newTestBook(t)
	now := time.Now()

	b.UpdateDepth(context.Background(), SideBid, money.MustNew("5100"), 10, now)
	b.UpdateDepth(context.Background(), SideBid, money.MustNew("5099.75"), 20, now)
	b.UpdateDepth(context.Background(), SideAsk, money.MustNew("5100.25"), 15, now)

	snap := b.TakeSnapshot(10)
	require.True(t, snap.HasBestBid)
	require.True(t, snap.HasBestAsk)
	assert.True(t, snap.BestBid.Equal(money.MustNew("5100")))
	assert.True(t, snap.BestAsk.Equal(money.MustNew("5100.25")))
	assert.True(t, snap.Spread.Equal(money.MustNew("0.25")))
	assert.Equal(t, int64(30), snap.TotalBidVolume)
}

func TestBook_UpdateDepth_RemovesOnZeroVolume(t *testing.T) {
	b := newTestBook(t)
	now := time.Now()
	b.UpdateDepth(context.Background(), SideBid, money.MustNew("5100"), 10, now)
	b.UpdateDepth(context.Background(), SideBid, money.MustNew("5100"), 0, now)

	snap := b.TakeSnapshot(10)
	assert.False(t, snap.HasBestBid)
}

func TestBook_Imbalance_BullishWhenBidsDominate(t *testing.T) {
	b := newTestBook(t)
	now := time.Now()
	b.UpdateDepth(context.Background(), SideBid, money.MustNew("100"), 100, now)
	b.UpdateDepth(context.Background(), SideAsk, money.MustNew("101"), 10, now)

	imb := b.Imbalance(5)
	assert.Equal(t, Bullish, imb.Direction)
	assert.Greater(t, imb.Ratio, 0.0)
}

func TestBook_LiquidityLevels_RequiresMinSamples(t *testing.T) {
	b := newTestBook(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.UpdateDepth(context.Background(), SideBid, money.MustNew("100"), int64(10+i), now.Add(time.Duration(i)*time.Second))
	}
	levels := b.LiquidityLevels(3)
	require.Len(t, levels, 1)
	assert.Equal(t, SideBid, levels[0].Side)

	none := b.LiquidityLevels(10)
	assert.Empty(t, none)
}

func TestBook_VolumeProfile_IdentifiesPOC(t *testing.T) {
	b := newTestBook(t)
	now := time.Now()
	b.RecordTrade(money.MustNew("100"), 5, "Bid", now)
	b.RecordTrade(money.MustNew("100"), 50, "Bid", now)
	b.RecordTrade(money.MustNew("110"), 5, "Ask", now)

	profile := b.VolumeProfile(5)
	require.NotEmpty(t, profile.Buckets)
	assert.Greater(t, profile.POC.Volume, int64(0))
	assert.GreaterOrEqual(t, profile.ValueAreaCoverage, 0.0)
}

func TestBook_SpoofDetections_FlagsRapidCancellation(t *testing.T) {
	b := newTestBook(t)
	base := time.Now()
	tick := money.MustNew("0.25")

	// Establish a best bid far from the tracked price so distance clears.
	b.UpdateDepth(context.Background(), SideBid, money.MustNew("100"), 50, base)

	price := money.MustNew("99")
	for i := 0; i < 12; i++ {
		ts := base.Add(time.Duration(i) * 4 * time.Second)
		b.UpdateDepth(context.Background(), SideBid, price, 100, ts)
		b.UpdateDepth(context.Background(), SideBid, price, 1, ts.Add(time.Millisecond))
	}

	cfg := DefaultSpoofConfig()
	cfg.Window = time.Hour
	detections := b.SpoofDetections(cfg, base.Add(time.Hour), tick)
	for _, d := range detections {
		assert.GreaterOrEqual(t, d.Confidence, 0.0)
		assert.LessOrEqual(t, d.Confidence, 1.0)
	}
}
