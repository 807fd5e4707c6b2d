package stats

import (
	"context"
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T, ttl time.Duration) (*Registry, *eventbus.Bus) {
	t.Helper()
	logger := zap.NewNop()
	reg := tasks.New(logger)
	bus := eventbus.New(logger, reg)
	return NewRegistry(bus, DefaultHealthWeights(), DefaultHealthThresholds(), ttl), bus
}

func TestComponentStats_RecordsAndSnapshots(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Second)
	cs := registry.Component("orders")
	cs.RecordOperation("place")
	cs.RecordOperation("place")
	cs.RecordError("validation")
	cs.RecordLatency("place", 10*time.Millisecond)
	cs.SetGauge(GaugeBufferUtil, 0.2)

	snap := cs.Snapshot()
	assert.Equal(t, int64(2), snap.Operations["place"])
	assert.Equal(t, int64(1), snap.Errors["validation"])
	assert.Equal(t, 0.2, snap.Gauges[GaugeBufferUtil])
	require.Contains(t, snap.Latencies, "place")
	assert.Equal(t, int64(1), snap.Latencies["place"].Count)
}

func TestRegistry_Snapshot_CachesWithinTTL(t *testing.T) {
	registry, _ := newTestRegistry(t, 50*time.Millisecond)
	cs := registry.Component("orders")
	cs.RecordOperation("place")

	first := registry.Snapshot(context.Background())
	cs.RecordOperation("place") // not reflected until cache expires

	second := registry.Snapshot(context.Background())
	assert.Equal(t, first.Components["orders"].Operations["place"], second.Components["orders"].Operations["place"])

	time.Sleep(60 * time.Millisecond)
	third := registry.Snapshot(context.Background())
	assert.Equal(t, int64(2), third.Components["orders"].Operations["place"])
}

func TestRegistry_Snapshot_ComponentSilentOnHealthKeysScoresFull(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Millisecond)
	registry.Component("bars") // no recordings at all
	time.Sleep(2 * time.Millisecond)

	snap := registry.Snapshot(context.Background())
	assert.Equal(t, 100, snap.ComponentScore["bars"])
	assert.Equal(t, StatusHealthy, snap.ComponentStatus["bars"])
}

func TestRegistry_Snapshot_DegradesOnHighErrorRate(t *testing.T) {
	registry, _ := newTestRegistry(t, time.Millisecond)
	cs := registry.Component("book")
	for i := 0; i < 10; i++ {
		cs.RecordError("spoof_detector_panic")
	}
	time.Sleep(2 * time.Millisecond)

	snap := registry.Snapshot(context.Background())
	assert.Less(t, snap.ComponentScore["book"], 100)
}

func TestHealthThresholds_Classify(t *testing.T) {
	th := DefaultHealthThresholds()
	assert.Equal(t, StatusHealthy, th.Classify(80))
	assert.Equal(t, StatusDegraded, th.Classify(50))
	assert.Equal(t, StatusUnhealthy, th.Classify(49))
}
