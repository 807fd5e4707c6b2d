// Package positions tracks net position, average price and realized/
// unrealized P&L per contract from a stream of idempotent fill reports,
// using a FIFO lot list for realized P&L attribution.
package positions

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
)

// lot is one open FIFO tranche: size contracts acquired at price.
type lot struct {
	size  int64 // always positive; sign lives on the position, not the lot
	price money.Decimal
}

// Position is one contract's tracked state. Invariant: the sum of the
// open lots' signed sizes equals NetSize; AvgPrice is the weighted
// average of open lots and is preserved on reductions, only recomputed
// on adds.
type Position struct {
	ContractID   string
	NetSize      int64
	AvgPrice     money.Decimal
	RealizedPnL  money.Decimal
	UnrealizedPnL money.Decimal
	UpdatedAt    time.Time
}

// Tracker owns every contract's Position and applies fills serialized
// per contract so concurrent fill reports for the same contract can
// never interleave.
type Tracker struct {
	bus *eventbus.Bus
	seq eventbus.Sequencer

	mu        sync.Mutex
	positions map[string]*trackedPosition
	seen      map[string]struct{} // fill idempotency keys already applied
}

type trackedPosition struct {
	pos  Position
	lots *list.List // of *lot, oldest (FIFO head) first
	mu   sync.Mutex // per-contract serialization
}

// New constructs an empty Tracker.
func New(bus *eventbus.Bus) *Tracker {
	return &Tracker{
		bus:       bus,
		positions: make(map[string]*trackedPosition),
		seen:      make(map[string]struct{}),
	}
}

func (t *Tracker) forContract(contractID string) *trackedPosition {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp, ok := t.positions[contractID]
	if !ok {
		tp = &trackedPosition{
			pos:  Position{ContractID: contractID},
			lots: list.New(),
		}
		t.positions[contractID] = tp
	}
	return tp
}

// ApplyFill processes one fill report idempotently: a fillID seen before
// is a no-op. Adds open a new FIFO lot and recompute the weighted
// average; reductions consume lots oldest-first, realizing P&L per lot
// and leaving AvgPrice untouched.
func (t *Tracker) ApplyFill(ctx context.Context, fillID, contractID string, side money.Side, size int64, price money.Decimal, ts time.Time) {
	t.mu.Lock()
	if _, dup := t.seen[fillID]; dup {
		t.mu.Unlock()
		return
	}
	t.seen[fillID] = struct{}{}
	t.mu.Unlock()

	tp := t.forContract(contractID)
	tp.mu.Lock()
	before := tp.pos.NetSize
	signedSize := side.Sign() * size

	switch {
	case before == 0 || sameSign(before, signedSize):
		tp.addLot(size, price, signedSize)
	default:
		tp.reduceLots(size, price, signedSize)
	}
	tp.pos.UpdatedAt = ts
	after := tp.pos.NetSize
	snapshot := tp.pos
	tp.mu.Unlock()

	t.emitTransition(ctx, contractID, before, after, snapshot)
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// addLot appends a new FIFO lot and recomputes the weighted-average
// price over all open lots.
func (tp *trackedPosition) addLot(size int64, price money.Decimal, signedSize int64) {
	tp.lots.PushBack(&lot{size: size, price: price})
	tp.pos.NetSize += signedSize
	tp.pos.AvgPrice = tp.weightedAverage()
}

func (tp *trackedPosition) weightedAverage() money.Decimal {
	var totalSize int64
	sum := money.Zero
	for e := tp.lots.Front(); e != nil; e = e.Next() {
		l := e.Value.(*lot)
		totalSize += l.size
		sum = sum.Add(l.price.Mul(money.FromInt(l.size)))
	}
	if totalSize == 0 {
		return money.Zero
	}
	return sum.Div(money.FromInt(totalSize))
}

// reduceLots consumes oldest-first lots to cover a reduction/reversal,
// realizing P&L per consumed unit. AvgPrice is preserved as-is on
// reductions rather than recomputed.
func (tp *trackedPosition) reduceLots(size int64, fillPrice money.Decimal, signedFillSize int64) {
	remaining := size
	// The position's existing net size is opposite-signed to the fill;
	// its own sign tells us which direction is being closed.
	positionSign := int64(1)
	if tp.pos.NetSize < 0 {
		positionSign = -1
	}

	for remaining > 0 && tp.lots.Len() > 0 {
		front := tp.lots.Front()
		l := front.Value.(*lot)
		consume := remaining
		if consume > l.size {
			consume = l.size
		}
		delta := fillPrice.Sub(l.price).Mul(money.FromInt(consume))
		if positionSign < 0 {
			delta = delta.Neg()
		}
		tp.pos.RealizedPnL = tp.pos.RealizedPnL.Add(delta)

		l.size -= consume
		remaining -= consume
		if l.size == 0 {
			tp.lots.Remove(front)
		}
	}

	tp.pos.NetSize += signedFillSize
	if remaining > 0 {
		// The reduction exceeded the open lots (a reversal): the
		// excess opens a fresh lot at the fill price in the new
		// direction.
		tp.lots.PushBack(&lot{size: remaining, price: fillPrice})
		tp.pos.AvgPrice = fillPrice
	} else if tp.lots.Len() == 0 {
		tp.pos.AvgPrice = money.Zero
	}
}

// MarkToMarket recomputes UnrealizedPnL for contractID against the
// current market price.
func (t *Tracker) MarkToMarket(contractID string, currentPrice money.Decimal) {
	tp := t.forContract(contractID)
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if tp.pos.NetSize == 0 {
		tp.pos.UnrealizedPnL = money.Zero
		return
	}
	diff := currentPrice.Sub(tp.pos.AvgPrice)
	signed := diff.Mul(money.FromInt(tp.pos.NetSize))
	tp.pos.UnrealizedPnL = signed
}

// Get returns a snapshot of contractID's position.
func (t *Tracker) Get(contractID string) Position {
	tp := t.forContract(contractID)
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.pos
}

func (t *Tracker) emitTransition(ctx context.Context, contractID string, before, after int64, pos Position) {
	if t.bus == nil {
		return
	}
	kind := eventbus.KindPositionChanged
	switch {
	case before == 0 && after != 0:
		kind = eventbus.KindPositionOpened
	case before != 0 && after == 0:
		kind = eventbus.KindPositionClosed
	}
	t.bus.Emit(ctx, eventbus.NewPositionLifecycle(&t.seq, kind, contractID, after, pos.AvgPrice.String()))
}
