package bars

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/clock"
	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"go.uber.org/zap"
)

// Timeframe is one configured aggregation period, e.g. 1s, 15s, 1m.
type Timeframe struct {
	Name   string
	Period time.Duration
}

// validator is the narrow slice of *validate.Validator this package
// actually calls; declared here so tests can inject a fake without
// depending on internal/validate's concrete type.
type validator interface {
	Price(price money.Decimal) (aligned money.Decimal, rejected bool)
	Volume(volume int64) (rejected bool)
	Timestamp(ts, now time.Time) (rejected bool)
}

// timeframeState is the per-timeframe mutable state, guarded by its own
// lock so different timeframes update independently.
type timeframeState struct {
	mu       sync.Mutex
	ring     *Ring
	origin   time.Time
	seq      eventbus.Sequencer
	flushDir string
}

// Aggregator builds OHLCV bars for every configured timeframe from a
// single trade stream.
type Aggregator struct {
	instrument string
	tick       money.Decimal
	loc        *time.Location
	validator  validator
	bus        *eventbus.Bus
	registry   *tasks.Registry
	logger     *zap.Logger
	clk        clock.Clock

	ringCapacity int
	flushDir     string

	states map[string]*timeframeState

	lastTradeMu sync.Mutex
	lastTrade   money.Decimal
}

// Config tunes the aggregator.
type Config struct {
	Timeframes   []Timeframe
	RingCapacity int    // default 1000
	FlushDir     string // directory for overflow segment files
}

// New constructs an Aggregator for instrument across cfg.Timeframes.
func New(cfg Config, instrument string, tick money.Decimal, loc *time.Location,
	validator validator, bus *eventbus.Bus, registry *tasks.Registry, logger *zap.Logger, clk clock.Clock) *Aggregator {

	if cfg.RingCapacity == 0 {
		cfg.RingCapacity = 1000
	}
	a := &Aggregator{
		instrument:   instrument,
		tick:         tick,
		loc:          loc,
		validator:    validator,
		bus:          bus,
		registry:     registry,
		logger:       logger.With(zap.String("instrument", instrument)),
		clk:          clk,
		ringCapacity: cfg.RingCapacity,
		flushDir:     cfg.FlushDir,
		states:       make(map[string]*timeframeState),
	}
	now := clk.Now()
	for _, tf := range cfg.Timeframes {
		a.states[tf.Name] = &timeframeState{
			ring:   NewRing(cfg.RingCapacity),
			origin: clock.BucketOrigin(now, loc),
		}
	}
	return a
}

// Start launches one empty-bar timer task per timeframe.
func (a *Aggregator) Start(ctx context.Context, timeframes []Timeframe) {
	for _, tf := range timeframes {
		tf := tf
		a.registry.Spawn(ctx, "bars.empty_bar."+tf.Name, func(taskCtx context.Context) error {
			return a.emptyBarLoop(taskCtx, tf)
		})
	}
}

func (a *Aggregator) emptyBarLoop(ctx context.Context, tf Timeframe) error {
	ticker := time.NewTicker(tf.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.emitEmptyBarIfIdle(ctx, tf)
		}
	}
}

func (a *Aggregator) emitEmptyBarIfIdle(ctx context.Context, tf Timeframe) {
	st := a.states[tf.Name]
	st.mu.Lock()
	defer st.mu.Unlock()

	now := a.clk.Now()
	bucket := bucketStart(now, st.origin, tf.Period)
	last, ok := st.ring.Last()
	if ok && !last.BucketStart.Before(bucket) {
		return // a trade already opened/continued this bucket
	}
	priorClose := money.Zero
	if ok {
		priorClose = last.Close
	}
	empty := emptyBar(bucket, priorClose)
	toFlush := st.ring.Push(empty)
	a.maybeFlush(tf.Name, st, toFlush)
	a.bus.Emit(ctx, eventbus.NewBarClosed(&st.seq, a.instrument, tf.Period, bucket))
}

// OnTrade ingests one trade: validates and aligns the price, assigns it
// to each timeframe's current bucket transactionally (stage, validate,
// commit; roll back to the pre-update snapshot on failure), and updates
// current_price.
func (a *Aggregator) OnTrade(ctx context.Context, timeframes []Timeframe, rawPrice money.Decimal, size int64, ts time.Time) error {
	aligned, rejected := a.validator.Price(rawPrice)
	if rejected {
		return fmt.Errorf("trade price rejected as anomaly or out of range")
	}
	if a.validator.Volume(size) {
		return fmt.Errorf("trade size rejected")
	}
	if a.validator.Timestamp(ts, a.clk.Now()) {
		return fmt.Errorf("trade timestamp rejected")
	}

	a.lastTradeMu.Lock()
	a.lastTrade = aligned
	a.lastTradeMu.Unlock()

	for _, tf := range timeframes {
		a.applyTrade(ctx, tf, aligned, size, ts)
	}
	return nil
}

func (a *Aggregator) applyTrade(ctx context.Context, tf Timeframe, price money.Decimal, size int64, ts time.Time) {
	st := a.states[tf.Name]
	st.mu.Lock()
	defer st.mu.Unlock()

	crossed, delta := clock.CrossesDST(a.loc, st.origin, ts)
	if crossed {
		st.origin = clock.BucketOrigin(ts, a.loc)
		a.bus.Emit(ctx, eventbus.NewSessionTransition(&st.seq, a.instrument, delta, ts))
	}

	bucket := bucketStart(ts, st.origin, tf.Period)
	last, ok := st.ring.Last()

	var staged Bar
	isNewBar := !ok || last.BucketStart.Before(bucket)
	if isNewBar {
		staged = Bar{BucketStart: bucket, Open: price, High: price, Low: price, Close: price, Volume: size, TradeCount: 1}
	} else {
		staged = last
		if price.GreaterThan(staged.High) {
			staged.High = price
		}
		if price.LessThan(staged.Low) {
			staged.Low = price
		}
		staged.Close = price
		staged.Volume += size
		staged.TradeCount++
	}

	if !staged.Valid() {
		a.logger.Warn("bar transaction rolled back: invariant violation", zap.String("timeframe", tf.Name))
		return // rollback: staged never committed, ring unchanged
	}

	var toFlush []Bar
	if isNewBar {
		toFlush = st.ring.Push(staged)
		a.bus.Emit(ctx, eventbus.NewBarClosed(&st.seq, a.instrument, tf.Period, last.BucketStart))
	} else {
		st.ring.ReplaceLast(staged)
		a.bus.Emit(ctx, eventbus.NewBarUpdated(&st.seq, a.instrument, tf.Period, staged.BucketStart))
	}
	a.maybeFlush(tf.Name, st, toFlush)
}

func (a *Aggregator) maybeFlush(name string, st *timeframeState, toFlush []Bar) {
	if len(toFlush) == 0 || a.flushDir == "" {
		return
	}
	path := fmt.Sprintf("%s/%s_%s.overflow", a.flushDir, a.instrument, name)
	w, err := OpenSegmentWriter(path, a.tick, 0)
	if err != nil {
		a.logger.Error("overflow flush: open failed", zap.Error(err))
		return
	}
	defer w.Close()
	if err := w.AppendBars(toFlush); err != nil {
		a.logger.Error("overflow flush: write failed", zap.Error(err))
	}
}

// GetBars returns the last count bars for timeframe, merging in-memory
// and on-disk slices transparently.
func (a *Aggregator) GetBars(timeframe string, count int) ([]Bar, error) {
	st, ok := a.states[timeframe]
	if !ok {
		return nil, fmt.Errorf("unknown timeframe %q", timeframe)
	}
	st.mu.Lock()
	inMemory := st.ring.Tail(count)
	flushDir := a.flushDir
	st.mu.Unlock()

	if len(inMemory) >= count || flushDir == "" {
		return inMemory, nil
	}
	path := fmt.Sprintf("%s/%s_%s.overflow", flushDir, a.instrument, timeframe)
	onDisk, _, err := ReadSegments(path)
	if err != nil {
		return inMemory, err
	}
	need := count - len(inMemory)
	if need > len(onDisk) {
		need = len(onDisk)
	}
	merged := append(append([]Bar(nil), onDisk[len(onDisk)-need:]...), inMemory...)
	return merged, nil
}

// CurrentPrice returns the last tick-aligned trade price; if none, the
// best available of (1s,15s,1m,5m) last close.
func (a *Aggregator) CurrentPrice() (money.Decimal, bool) {
	a.lastTradeMu.Lock()
	last := a.lastTrade
	a.lastTradeMu.Unlock()
	if !last.IsZero() {
		return last, true
	}
	for _, name := range []string{"1s", "15s", "1m", "5m"} {
		if st, ok := a.states[name]; ok {
			st.mu.Lock()
			bar, has := st.ring.Last()
			st.mu.Unlock()
			if has {
				return bar.Close, true
			}
		}
	}
	return money.Zero, false
}

func bucketStart(t, origin time.Time, period time.Duration) time.Time {
	elapsed := t.Sub(origin)
	buckets := elapsed / period
	return origin.Add(buckets * period)
}
