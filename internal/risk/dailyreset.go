package risk

import (
	"context"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/clock"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"go.uber.org/zap"
)

// DailyCounters holds the per-day state the Risk Manager resets at the
// configured session start. Fields are exported so a caller can read a
// consistent snapshot under Scheduler's lock via Snapshot.
type DailyCounters struct {
	TradesOpened  int
	RealizedPnL   string // decimal string; formatting is the caller's concern
	ResetCount    int
	LastResetAt   time.Time
}

// DailyScheduler resets DailyCounters once per trading day at a
// configured New York session start, DST-aware. It runs as a single
// managed task that sleeps until the next boundary, resets under its
// own lock, and repeats.
type DailyScheduler struct {
	clk      clock.Clock
	loc      *time.Location
	hour     int
	minute   int
	registry *tasks.Registry
	logger   *zap.Logger

	mu       sync.Mutex
	counters DailyCounters
	onReset  []func(DailyCounters)
}

// NewDailyScheduler constructs a scheduler resetting at hour:minute in
// loc (pass time.LoadLocation("America/New_York") for the default
// session) and starts its managed task.
func NewDailyScheduler(ctx context.Context, registry *tasks.Registry, clk clock.Clock, loc *time.Location, hour, minute int, logger *zap.Logger) *DailyScheduler {
	s := &DailyScheduler{
		clk:      clk,
		loc:      loc,
		hour:     hour,
		minute:   minute,
		registry: registry,
		logger:   logger,
	}
	registry.Spawn(ctx, "risk.daily_reset", s.run)
	return s
}

// OnReset registers a callback invoked every time the daily reset fires,
// after counters have been cleared. Callbacks run after the scheduler's
// lock is released and receive a snapshot of the cleared counters.
func (s *DailyScheduler) OnReset(fn func(DailyCounters)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReset = append(s.onReset, fn)
}

// RecordTradeOpened increments today's opened-trade counter.
func (s *DailyScheduler) RecordTradeOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.TradesOpened++
}

// Snapshot returns the current counters.
func (s *DailyScheduler) Snapshot() DailyCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

func (s *DailyScheduler) run(ctx context.Context) error {
	for {
		next, err := clock.NewYorkSessionStart(s.clk.Now().In(s.loc), s.hour, s.minute)
		if err != nil {
			s.logger.Error("risk: failed to compute next session start", zap.Error(err))
			return err
		}
		wait := next.Sub(s.clk.Now())
		if wait <= 0 {
			wait = time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.reset()
		}
	}
}

func (s *DailyScheduler) reset() {
	s.mu.Lock()
	s.counters = DailyCounters{
		ResetCount:  s.counters.ResetCount + 1,
		LastResetAt: s.clk.Now(),
	}
	snapshot := s.counters
	callbacks := append([]func(DailyCounters){}, s.onReset...)
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(snapshot)
	}
}
