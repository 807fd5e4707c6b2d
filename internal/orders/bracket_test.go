package orders

import (
	"context"
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceBracket_MarketEntryFillsAndProtects(t *testing.T) {
	eng, _ := newTestEngine(t)

	req := BracketRequest{
		ContractID:        "ES",
		Side:              money.Buy,
		Size:              money.Size(2),
		EntryType:         TypeMarket,
		StopOffsetTicks:   4,
		TargetOffsetTicks: 8,
	}

	// awaitFill polls Get(), so a background goroutine waits for the
	// entry to appear and records its fill before PlaceBracket's poll
	// loop would time out.
	go func() {
		// best-effort: wait for the entry to appear, then fill it.
		for i := 0; i < 100; i++ {
			eng.mu.RLock()
			var entryID string
			for id, o := range eng.live {
				if o.Status == StatusWorking {
					entryID = id
				}
			}
			eng.mu.RUnlock()
			if entryID != "" {
				eng.OnFill(context.Background(), entryID, 2, money.MustNew("5100"))
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	bracket, err := eng.PlaceBracket(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, bracket.Protected)
	assert.NotEmpty(t, bracket.StopID)
	assert.NotEmpty(t, bracket.TargetID)
}

func TestPlaceBracket_RejectsInvalidEntryType(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.PlaceBracket(context.Background(), BracketRequest{
		ContractID: "ES", Side: money.Buy, Size: money.Size(1),
		EntryType: "Bogus", StopOffsetTicks: 4, TargetOffsetTicks: 8,
	})
	assert.Error(t, err)
}

func TestPlaceBracket_RejectsMissingLimitEntryPrice(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.PlaceBracket(context.Background(), BracketRequest{
		ContractID: "ES", Side: money.Buy, Size: money.Size(1),
		EntryType: TypeLimit, StopOffsetTicks: 4, TargetOffsetTicks: 8,
	})
	assert.Error(t, err)
}

func TestBracketGeometry_LongStopBelowTargetAbove(t *testing.T) {
	entry := money.MustNew("5100")
	tick := money.MustNew("0.25")

	stop, err := bracketGeometry(entry, tick, 4, -1, money.Buy)
	require.NoError(t, err)
	assert.True(t, stop.LessThan(entry))

	target, err := bracketGeometry(entry, tick, 8, 1, money.Buy)
	require.NoError(t, err)
	assert.True(t, target.GreaterThan(entry))
}

func TestBracketGeometry_ShortStopAboveTargetBelow(t *testing.T) {
	entry := money.MustNew("5100")
	tick := money.MustNew("0.25")

	stop, err := bracketGeometry(entry, tick, 4, -1, money.Sell)
	require.NoError(t, err)
	assert.True(t, stop.GreaterThan(entry))

	target, err := bracketGeometry(entry, tick, 8, 1, money.Sell)
	require.NoError(t, err)
	assert.True(t, target.LessThan(entry))
}
