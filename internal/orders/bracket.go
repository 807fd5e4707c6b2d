package orders

import (
	"context"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/eventbus"
	"github.com/abdoElHodaky/tradingsuite/internal/money"
	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
)

// BracketRequest describes a bracket placement: an entry plus protective
// stop/target expressed as tick offsets from the filled entry price.
type BracketRequest struct {
	ContractID        string
	Side               money.Side
	Size               money.Size
	EntryType          Type // Market or Limit
	EntryPrice         money.Decimal // required iff EntryType == Limit
	StopOffsetTicks    int64
	TargetOffsetTicks  int64
}

// PlaceBracket runs the transactional bracket algorithm: place the
// entry, wait for a fill up to EntryTimeout, compute protective
// prices from the filled size, place stop and target linked as OCO. Any
// failure after a partial fill either protects the position or surfaces
// ProtectionFailed after an emergency flatten attempt; no orphan orders
// are left behind on a clean failure.
func (e *Engine) PlaceBracket(ctx context.Context, req BracketRequest) (*Bracket, error) {
	if req.EntryType != TypeMarket && req.EntryType != TypeLimit {
		return nil, tserrors.New(tserrors.CodeValidation, "bracket entry_type must be Market or Limit")
	}
	if req.EntryType == TypeLimit && req.EntryPrice.IsZero() {
		return nil, tserrors.New(tserrors.CodeValidation, "bracket entry_price required for Limit entry")
	}
	if req.StopOffsetTicks <= 0 || req.TargetOffsetTicks <= 0 {
		return nil, tserrors.New(tserrors.CodeValidation, "bracket stop/target offsets must be positive")
	}

	tick, ok := e.instruments.TickSize(req.ContractID)
	if !ok {
		return nil, tserrors.New(tserrors.CodeValidation, "unknown instrument: "+req.ContractID)
	}

	var entry *Order
	var err error
	if req.EntryType == TypeMarket {
		entry, err = e.PlaceMarket(ctx, req.ContractID, req.Side, req.Size)
	} else {
		entry, err = e.PlaceLimit(ctx, req.ContractID, req.Side, req.Size, req.EntryPrice)
	}
	if err != nil {
		return nil, err
	}

	filled, err := e.awaitFill(ctx, entry.BrokerID, req.Size, e.cfg.EntryTimeout)
	if err != nil {
		_ = e.Cancel(ctx, entry.BrokerID)
		return nil, err
	}
	if filled == 0 {
		_ = e.Cancel(ctx, entry.BrokerID)
		return nil, tserrors.New(tserrors.CodeTimeout, "bracket entry timed out with zero fill")
	}
	if filled < int64(req.Size) {
		_ = e.Cancel(ctx, entry.BrokerID) // cancel the unfilled remainder
	}

	entryOrder, _ := e.Get(entry.BrokerID)
	filledSize := money.Size(filled)
	geomSide := req.Side
	stopPrice, err := bracketGeometry(entryOrder.AvgFillPrice, tick, req.StopOffsetTicks, -1, geomSide)
	if err != nil {
		return nil, e.emergencyProtectionFailure(ctx, req.ContractID, geomSide, filledSize)
	}
	targetPrice, err := bracketGeometry(entryOrder.AvgFillPrice, tick, req.TargetOffsetTicks, 1, geomSide)
	if err != nil {
		return nil, e.emergencyProtectionFailure(ctx, req.ContractID, geomSide, filledSize)
	}

	protectiveSide := geomSide.Opposite()
	stopOrder, stopErr := e.placeProtective(ctx, req.ContractID, protectiveSide, filledSize, stopPrice, true)
	targetOrder, targetErr := e.placeProtective(ctx, req.ContractID, protectiveSide, filledSize, targetPrice, false)
	if stopErr != nil || targetErr != nil {
		if stopOrder != nil {
			_ = e.Cancel(ctx, stopOrder.BrokerID)
		}
		if targetOrder != nil {
			_ = e.Cancel(ctx, targetOrder.BrokerID)
		}
		return nil, e.emergencyProtectionFailure(ctx, req.ContractID, geomSide, filledSize)
	}

	e.LinkOCO(stopOrder.BrokerID, targetOrder.BrokerID)
	if e.bus != nil {
		e.bus.Emit(ctx, eventbus.NewBracketOpened(&e.seq, entry.BrokerID, stopOrder.BrokerID, targetOrder.BrokerID))
	}

	return &Bracket{EntryID: entry.BrokerID, StopID: stopOrder.BrokerID, TargetID: targetOrder.BrokerID, Protected: true}, nil
}

// placeProtective retries once with backoff on failure, per the bracket
// algorithm's protection step.
func (e *Engine) placeProtective(ctx context.Context, contractID string, side money.Side, size money.Size, price money.Decimal, isStop bool) (*Order, error) {
	var place func() (*Order, error)
	if isStop {
		place = func() (*Order, error) { return e.PlaceStop(ctx, contractID, side, size, price) }
	} else {
		place = func() (*Order, error) { return e.PlaceLimit(ctx, contractID, side, size, price) }
	}

	o, err := place()
	if err == nil {
		return o, nil
	}
	time.Sleep(e.cfg.ProtectionRetryBackoff)
	return place()
}

// emergencyProtectionFailure attempts a market close of the filled
// quantity regardless of whether it can succeed, and always surfaces
// ProtectionFailed: an order-engine caller must never treat a bracket as
// successful while any portion of the position is unprotected.
func (e *Engine) emergencyProtectionFailure(ctx context.Context, contractID string, entrySide money.Side, size money.Size) error {
	closeSide := entrySide.Opposite()
	if _, err := e.PlaceMarket(ctx, contractID, closeSide, size); err != nil {
		e.logger.Error("emergency flatten failed after protection failure")
	}
	return tserrors.New(tserrors.CodeUnprotectedPosition, "bracket protection failed; emergency flatten attempted")
}

// awaitFill polls the tracked order until it reaches Filled, a
// cumulative partial fill persists past timeout, or timeout elapses
// with zero fill. Returns the cumulative filled size observed.
func (e *Engine) awaitFill(ctx context.Context, brokerID string, size money.Size, timeout time.Duration) (int64, error) {
	deadline := time.Now().Add(timeout)
	backoff := 50 * time.Millisecond
	for {
		o, ok := e.Get(brokerID)
		if ok && (o.Status == StatusFilled || o.Status == StatusPartiallyFilled) && o.FilledSize >= int64(size) {
			return o.FilledSize, nil
		}
		if ok && o.Status.IsTerminal() && o.Status != StatusFilled {
			return o.FilledSize, nil
		}
		if time.Now().After(deadline) {
			if ok {
				return o.FilledSize, nil
			}
			return 0, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

// bracketGeometry computes a protective price and validates the
// resulting geometry after alignment: for longs stop < entry < target,
// reversed for shorts.
func bracketGeometry(entryPrice, tick money.Decimal, ticks int64, direction int64, side money.Side) (money.Decimal, error) {
	price := money.OffsetPrice(entryPrice, tick, ticks, direction, side)
	aligned, _ := money.AlignToTick(price, tick)

	isStop := direction < 0
	longGeometryOK := side == money.Buy && ((isStop && aligned.LessThan(entryPrice)) || (!isStop && aligned.GreaterThan(entryPrice)))
	shortGeometryOK := side == money.Sell && ((isStop && aligned.GreaterThan(entryPrice)) || (!isStop && aligned.LessThan(entryPrice)))
	if !longGeometryOK && !shortGeometryOK {
		return aligned, tserrors.New(tserrors.CodeValidation, "invalid bracket geometry after alignment")
	}
	return aligned, nil
}
