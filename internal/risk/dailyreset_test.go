package risk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestDailyScheduler_RecordsTradesUntilReset(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Start just before the 18:00 session boundary so the task's first
	// sleep is short.
	start := time.Date(2026, 3, 10, 17, 59, 59, 0, loc)
	clk := &steppingClock{now: start}

	logger := zap.NewNop()
	reg := tasks.New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := NewDailyScheduler(ctx, reg, clk, loc, 18, 0, logger)
	sched.RecordTradeOpened()
	sched.RecordTradeOpened()

	snap := sched.Snapshot()
	assert.Equal(t, 2, snap.TradesOpened)
}

func TestDailyScheduler_OnResetCallback(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start := time.Date(2026, 3, 10, 17, 59, 59, 0, loc)
	clk := &steppingClock{now: start}

	logger := zap.NewNop()
	reg := tasks.New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := NewDailyScheduler(ctx, reg, clk, loc, 18, 0, logger)
	fired := make(chan struct{}, 1)
	sched.OnReset(func(DailyCounters) { fired <- struct{}{} })

	clk.set(start.Add(2 * time.Second))
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("daily reset callback never fired")
	}
}
