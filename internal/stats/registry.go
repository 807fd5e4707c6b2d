// Package stats is the statistics/health core: every component holds a
// *ComponentStats tap, the Registry aggregates them behind a TTL cache,
// derives a 0-100 health score per component and overall, and
// Exporters render the aggregated snapshot as JSON, Prometheus text,
// CSV or a Datadog-style payload.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	gocache "github.com/patrickmn/go-cache"
)

const snapshotCacheKey = "snapshot"

// Well-known gauge/counter keys components use so the Registry can
// derive health inputs without per-component-type knowledge. A
// component that records nothing under these keys simply contributes a
// neutral (1.0, "fully healthy") value for that input.
const (
	GaugeConnectionHealth = "connection.health"   // 0 (down) .. 1 (healthy)
	GaugeBufferUtil       = "buffer.utilization"   // 0 (empty) .. 1 (full)
	CounterValidationOK   = "validation.accepted"
	CounterValidationRej  = "validation.rejected"
	CounterRetryAttempt   = "retry.attempt"
	CounterRetrySuccess   = "retry.success"
	ErrorKindAny          = "*" // reserved name for "all error kinds"; deriveInputs sums every kind directly and never reads it
)

// Snapshot is the aggregated, consistent view of every registered
// component plus the derived overall health.
type Snapshot struct {
	CapturedAt    time.Time
	Components    map[string]ComponentSnapshot
	ComponentScore map[string]int
	ComponentStatus map[string]Status
	OverallScore  int
	OverallStatus Status
}

// Registry is the single collector of every component's ComponentStats:
// parallel gather, TTL cache, health scoring, HealthChanged transitions.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*ComponentStats

	bus        *eventbus.Bus
	seq        eventbus.Sequencer
	weights    HealthWeights
	thresholds HealthThresholds

	cache *gocache.Cache

	statusMu   sync.Mutex
	lastStatus map[string]Status
}

// NewRegistry constructs a Registry whose Snapshot results are cached
// for ttl (5s is the recommended default) and which emits HealthChanged
// on bus when a component's or the overall status changes.
func NewRegistry(bus *eventbus.Bus, weights HealthWeights, thresholds HealthThresholds, ttl time.Duration) *Registry {
	return &Registry{
		components: make(map[string]*ComponentStats),
		bus:        bus,
		weights:    weights,
		thresholds: thresholds,
		cache:      gocache.New(ttl, 2*ttl),
		lastStatus: make(map[string]Status),
	}
}

// Component returns the named component's tap, creating it on first
// use. The returned Collector is safe for concurrent use by the owning
// component.
func (r *Registry) Component(name string) *ComponentStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.components[name]
	if !ok {
		cs = newComponentStats(name, DefaultLatencyBuckets)
		r.components[name] = cs
	}
	return cs
}

// Snapshot gathers every component in parallel, computes health scores,
// emits HealthChanged for any status transition, and caches the result
// for the configured TTL so repeated readers within the window observe
// an identical snapshot.
func (r *Registry) Snapshot(ctx context.Context) Snapshot {
	if cached, ok := r.cache.Get(snapshotCacheKey); ok {
		return cached.(Snapshot)
	}

	r.mu.RLock()
	comps := make([]*ComponentStats, 0, len(r.components))
	for _, cs := range r.components {
		comps = append(comps, cs)
	}
	r.mu.RUnlock()

	results := make([]ComponentSnapshot, len(comps))
	var wg sync.WaitGroup
	wg.Add(len(comps))
	for i, cs := range comps {
		go func(i int, cs *ComponentStats) {
			defer wg.Done()
			results[i] = cs.Snapshot()
		}(i, cs)
	}
	wg.Wait()

	snap := Snapshot{
		CapturedAt:      time.Now(),
		Components:      make(map[string]ComponentSnapshot, len(results)),
		ComponentScore:  make(map[string]int, len(results)),
		ComponentStatus: make(map[string]Status, len(results)),
	}

	var totalScore int
	for _, cs := range results {
		snap.Components[cs.Name] = cs
		score := Score(r.weights, deriveInputs(cs))
		status := r.thresholds.Classify(score)
		snap.ComponentScore[cs.Name] = score
		snap.ComponentStatus[cs.Name] = status
		totalScore += score
		r.emitTransition(ctx, cs.Name, status, score)
	}

	if len(results) > 0 {
		snap.OverallScore = totalScore / len(results)
	}
	snap.OverallStatus = r.thresholds.Classify(snap.OverallScore)
	r.emitTransition(ctx, "overall", snap.OverallStatus, snap.OverallScore)

	r.cache.SetDefault(snapshotCacheKey, snap)
	return snap
}

func (r *Registry) emitTransition(ctx context.Context, name string, status Status, score int) {
	r.statusMu.Lock()
	prev, known := r.lastStatus[name]
	r.lastStatus[name] = status
	r.statusMu.Unlock()

	if r.bus == nil || (known && prev == status) {
		return
	}
	fromStr := "Unknown"
	if known {
		fromStr = string(prev)
	}
	r.bus.Emit(ctx, eventbus.NewHealthChanged(&r.seq, name, fromStr, string(status), score))
}

// deriveInputs reads the well-known counter/gauge keys a component may
// have recorded and normalizes them into [0, 1] HealthInputs. A
// component silent on a given key contributes a neutral, fully-healthy
// value for that input rather than dragging the score down.
func deriveInputs(cs ComponentSnapshot) HealthInputs {
	in := HealthInputs{
		ConnectionHealth: 1,
		ValidationReject: 1,
		RetryRate:        1,
		BufferUtil:       1,
		ErrorRateDelta:   1,
	}

	if v, ok := cs.Gauges[GaugeConnectionHealth]; ok {
		in.ConnectionHealth = v
	}
	if v, ok := cs.Gauges[GaugeBufferUtil]; ok {
		in.BufferUtil = 1 - v
	}

	accepted := cs.Operations[CounterValidationOK]
	rejected := cs.Errors[CounterValidationRej]
	if total := accepted + rejected; total > 0 {
		in.ValidationReject = float64(accepted) / float64(total)
	}

	attempts := cs.Operations[CounterRetryAttempt]
	successes := cs.Operations[CounterRetrySuccess]
	if attempts > 0 {
		in.RetryRate = float64(successes) / float64(attempts)
	}

	var totalErrors int64
	for _, n := range cs.Errors {
		totalErrors += n
	}
	var totalOps int64
	for _, n := range cs.Operations {
		totalOps += n
	}
	if totalOps+totalErrors > 0 {
		in.ErrorRateDelta = 1 - float64(totalErrors)/float64(totalOps+totalErrors)
	}

	return in
}
