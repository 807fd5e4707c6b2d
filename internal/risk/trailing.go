package risk

import (
	"context"
	"sync"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/internal/orders"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
)

// OrderModifier is the subset of the Order Engine the Risk Manager
// depends on, kept as an interface so tests can substitute a fake.
type OrderModifier interface {
	Modify(ctx context.Context, brokerID string, newLimitPrice, newStopPrice money.Decimal, newSize money.Size) error
	PlaceBracket(ctx context.Context, req orders.BracketRequest) (*orders.Bracket, error)
	Cancel(ctx context.Context, brokerID string) error
	Get(brokerID string) (orders.Order, bool)
}

// TrailingStop tracks one managed trailing-stop task: on each price tick
// it moves the stop toward price in the profitable direction and never
// back, for a single stop order.
type TrailingStop struct {
	registry   *tasks.Registry
	modifier   OrderModifier
	stopID     string
	side       money.Side
	trailTicks int64
	tick       money.Decimal

	mu         sync.Mutex
	currentStop money.Decimal
	prices     chan money.Decimal
	cancel     context.CancelFunc
}

// NewTrailingStop starts the managed task that watches prices and trails
// stopID. Cancellation is idempotent: calling Cancel more than once, or
// after the task already exited, is a no-op.
func NewTrailingStop(ctx context.Context, registry *tasks.Registry, modifier OrderModifier, stopID string, side money.Side, initialStop, tick money.Decimal, trailTicks int64) *TrailingStop {
	taskCtx, cancel := context.WithCancel(ctx)
	ts := &TrailingStop{
		registry:    registry,
		modifier:    modifier,
		stopID:      stopID,
		side:        side,
		trailTicks:  trailTicks,
		tick:        tick,
		currentStop: initialStop,
		prices:      make(chan money.Decimal, 64),
		cancel:      cancel,
	}
	registry.Spawn(taskCtx, "risk.trailing_stop."+stopID, ts.run)
	return ts
}

// OnPrice feeds a new trade price to the trailing task; non-blocking,
// drops the update if the task's buffer is full (a later price will
// supersede it).
func (ts *TrailingStop) OnPrice(price money.Decimal) {
	select {
	case ts.prices <- price:
	default:
	}
}

// Cancel stops the trailing task. Idempotent.
func (ts *TrailingStop) Cancel() {
	ts.cancel()
}

func (ts *TrailingStop) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case price := <-ts.prices:
			ts.advance(ctx, price)
		}
	}
}

func (ts *TrailingStop) advance(ctx context.Context, price money.Decimal) {
	ts.mu.Lock()
	candidate := money.OffsetPrice(price, ts.tick, ts.trailTicks, -1, ts.side)
	var next money.Decimal
	improved := false
	if ts.side == money.Buy {
		if candidate.GreaterThan(ts.currentStop) {
			next, improved = candidate, true
		}
	} else {
		if candidate.LessThan(ts.currentStop) || ts.currentStop.IsZero() {
			next, improved = candidate, true
		}
	}
	if improved {
		ts.currentStop = next
	}
	ts.mu.Unlock()

	if !improved {
		return
	}
	_ = ts.modifier.Modify(ctx, ts.stopID, money.Zero, next, 0)
}
