package orders

import (
	"context"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InstrumentLookup resolves a contract's tick size for price alignment.
type InstrumentLookup interface {
	TickSize(contractID string) (money.Decimal, bool)
}

// Config tunes the Engine.
type Config struct {
	HistoryTTL     time.Duration // default 24h
	HistoryMax     int           // default 10000
	EntryTimeout   time.Duration // default 60s
	ProtectionRetryBackoff time.Duration
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{
		HistoryTTL:             24 * time.Hour,
		HistoryMax:             10000,
		EntryTimeout:           60 * time.Second,
		ProtectionRetryBackoff: time.Second,
	}
}

// Engine owns every order for a session: placement, modification,
// cancellation, OCO linkage and bracket orchestration.
type Engine struct {
	cfg        Config
	submitter  *Submitter
	instruments InstrumentLookup
	bus        *eventbus.Bus
	registry   *tasks.Registry
	logger     *zap.Logger
	locks      *fairLockRegistry
	seq        eventbus.Sequencer

	mu      sync.RWMutex
	live    map[string]*Order // BrokerID -> order
	history []*Order          // terminal orders, bounded
	oco     map[string]string // BrokerID -> linked BrokerID
}

// New constructs an order Engine.
func New(cfg Config, submitter *Submitter, instruments InstrumentLookup, bus *eventbus.Bus, registry *tasks.Registry, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		submitter:   submitter,
		instruments: instruments,
		bus:         bus,
		registry:    registry,
		logger:      logger,
		locks:       newFairLockRegistry(),
		live:        make(map[string]*Order),
		oco:         make(map[string]string),
	}
}

// resolveAndAlign looks up the contract's tick size and aligns price to
// it (half-to-even), per the placement algorithm's step 1.
func (e *Engine) resolveAndAlign(contractID string, price money.Decimal) (money.Decimal, error) {
	if price.IsZero() {
		return price, nil
	}
	tick, ok := e.instruments.TickSize(contractID)
	if !ok {
		return price, tserrors.New(tserrors.CodeValidation, "unknown instrument: "+contractID)
	}
	aligned, _ := money.AlignToTick(price, tick)
	return aligned, nil
}

// place runs the common placement algorithm: align, validate, acquire
// the per-contract lock, submit, register, emit.
func (e *Engine) place(ctx context.Context, o *Order) (*Order, error) {
	if !o.Size.Validate() {
		return nil, tserrors.New(tserrors.CodeValidation, "order size must be positive")
	}
	var err error
	o.LimitPrice, err = e.resolveAndAlign(o.ContractID, o.LimitPrice)
	if err != nil {
		return nil, err
	}
	o.StopPrice, err = e.resolveAndAlign(o.ContractID, o.StopPrice)
	if err != nil {
		return nil, err
	}
	o.IdempotencyKey = uuid.NewString()
	o.CreatedAt = time.Now()
	o.Status = StatusPending

	release := e.locks.For(o.ContractID).Acquire()
	defer release()

	ack, err := e.submitter.Place(ctx, o)
	if err != nil {
		o.Status = StatusRejected
		o.ClosedAt = time.Now()
		return nil, err
	}
	o.BrokerID = ack.BrokerID
	o.Status = StatusWorking
	o.WorkingAt = time.Now()

	e.mu.Lock()
	e.live[o.BrokerID] = o
	e.mu.Unlock()

	e.emit(ctx, eventbus.KindOrderPlaced, o.BrokerID, string(o.Status), "")
	return o, nil
}

// PlaceMarket submits a market order.
func (e *Engine) PlaceMarket(ctx context.Context, contractID string, side money.Side, size money.Size) (*Order, error) {
	return e.place(ctx, &Order{ContractID: contractID, Side: side, Size: size, Type: TypeMarket})
}

// PlaceLimit submits a limit order; the price is snapped to the tick
// before submission and the snapped value is what the returned Order
// carries (the caller can compare against their original input).
func (e *Engine) PlaceLimit(ctx context.Context, contractID string, side money.Side, size money.Size, price money.Decimal) (*Order, error) {
	return e.place(ctx, &Order{ContractID: contractID, Side: side, Size: size, Type: TypeLimit, LimitPrice: price})
}

// PlaceStop submits a stop order.
func (e *Engine) PlaceStop(ctx context.Context, contractID string, side money.Side, size money.Size, stopPrice money.Decimal) (*Order, error) {
	return e.place(ctx, &Order{ContractID: contractID, Side: side, Size: size, Type: TypeStop, StopPrice: stopPrice})
}

// PlaceStopLimit submits a stop-limit order.
func (e *Engine) PlaceStopLimit(ctx context.Context, contractID string, side money.Side, size money.Size, stopPrice, limitPrice money.Decimal) (*Order, error) {
	return e.place(ctx, &Order{ContractID: contractID, Side: side, Size: size, Type: TypeStopLimit, StopPrice: stopPrice, LimitPrice: limitPrice})
}

// Modify updates fields on a live order. Atomic from the caller's
// perspective: either the broker accepts the change or the local order
// is left untouched.
func (e *Engine) Modify(ctx context.Context, brokerID string, newLimitPrice, newStopPrice money.Decimal, newSize money.Size) error {
	e.mu.RLock()
	o, ok := e.live[brokerID]
	e.mu.RUnlock()
	if !ok {
		return tserrors.New(tserrors.CodeNotFound, "order not found: "+brokerID)
	}
	if o.Status.IsTerminal() {
		return tserrors.New(tserrors.CodeTerminalState, "order is terminal: "+brokerID)
	}

	release := e.locks.For(o.ContractID).Acquire()
	defer release()

	fields := map[string]interface{}{}
	if !newLimitPrice.IsZero() {
		aligned, err := e.resolveAndAlign(o.ContractID, newLimitPrice)
		if err != nil {
			return err
		}
		fields["limit_price"] = aligned.String()
	}
	if !newStopPrice.IsZero() {
		aligned, err := e.resolveAndAlign(o.ContractID, newStopPrice)
		if err != nil {
			return err
		}
		fields["stop_price"] = aligned.String()
	}
	if newSize.Validate() {
		fields["size"] = int64(newSize)
	}
	if err := e.submitter.Modify(ctx, brokerID, fields); err != nil {
		return err
	}

	e.mu.Lock()
	if lp, ok := fields["limit_price"]; ok {
		o.LimitPrice = money.MustNew(lp.(string))
	}
	if sp, ok := fields["stop_price"]; ok {
		o.StopPrice = money.MustNew(sp.(string))
	}
	if newSize.Validate() {
		o.Size = newSize
	}
	e.mu.Unlock()

	e.emit(ctx, eventbus.KindOrderModified, brokerID, string(o.Status), "")
	return nil
}

// Cancel requests cancellation; idempotent against an already-terminal
// order.
func (e *Engine) Cancel(ctx context.Context, brokerID string) error {
	e.mu.RLock()
	o, ok := e.live[brokerID]
	e.mu.RUnlock()
	if !ok {
		return nil // already evicted from live tracking: treat as success
	}
	if o.Status.IsTerminal() {
		return nil
	}

	release := e.locks.For(o.ContractID).Acquire()
	defer release()

	if err := e.submitter.Cancel(ctx, brokerID); err != nil {
		return err
	}
	e.transitionTerminal(o, StatusCancelled)
	e.emit(ctx, eventbus.KindOrderCancelled, brokerID, string(StatusCancelled), "")
	e.scheduleOCOCancel(ctx, brokerID)
	return nil
}

// OnFill applies a fill report from the user hub: updates cumulative
// fill size and weighted average price, and transitions status.
func (e *Engine) OnFill(ctx context.Context, brokerID string, fillSize int64, fillPrice money.Decimal) {
	e.mu.Lock()
	o, ok := e.live[brokerID]
	if !ok {
		e.mu.Unlock()
		return
	}
	totalPrior := o.FilledSize
	newTotal := totalPrior + fillSize
	if totalPrior == 0 {
		o.AvgFillPrice = fillPrice
	} else {
		weighted := o.AvgFillPrice.Mul(money.FromInt(totalPrior)).Add(fillPrice.Mul(money.FromInt(fillSize)))
		o.AvgFillPrice = weighted.Div(money.FromInt(newTotal))
	}
	o.FilledSize = newTotal
	if newTotal >= int64(o.Size) {
		o.Status = StatusFilled
		o.FilledAt = time.Now()
	} else {
		o.Status = StatusPartiallyFilled
	}
	terminal := o.Status == StatusFilled
	e.mu.Unlock()

	if terminal {
		e.transitionTerminal(o, StatusFilled)
		e.emit(ctx, eventbus.KindOrderFilled, brokerID, string(StatusFilled), "")
		e.scheduleOCOCancel(ctx, brokerID)
	}
}

func (e *Engine) transitionTerminal(o *Order, status Status) {
	e.mu.Lock()
	o.Status = status
	o.ClosedAt = time.Now()
	delete(e.live, o.BrokerID)
	e.history = append(e.history, o)
	e.evictHistory()
	e.mu.Unlock()
}

func (e *Engine) evictHistory() {
	cutoff := time.Now().Add(-e.cfg.HistoryTTL)
	start := 0
	for start < len(e.history) && e.history[start].ClosedAt.Before(cutoff) {
		start++
	}
	if start > 0 {
		e.history = append([]*Order(nil), e.history[start:]...)
	}
	if len(e.history) > e.cfg.HistoryMax {
		e.history = append([]*Order(nil), e.history[len(e.history)-e.cfg.HistoryMax:]...)
	}
}

func (e *Engine) emit(ctx context.Context, kind eventbus.Kind, orderID, status, reason string) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(ctx, eventbus.NewOrderLifecycle(&e.seq, kind, orderID, status, reason))
}

// Get returns a snapshot of a tracked order, live or historical.
func (e *Engine) Get(brokerID string) (Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if o, ok := e.live[brokerID]; ok {
		return o.Clone(), true
	}
	for _, o := range e.history {
		if o.BrokerID == brokerID {
			return o.Clone(), true
		}
	}
	return Order{}, false
}
