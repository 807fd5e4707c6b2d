package risk

import (
	"context"
	"sync"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/internal/orders"
	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
)

// TradeParams describes one managed trade: the sizing inputs and the
// bracket geometry to place once R is acquired.
type TradeParams struct {
	ContractID        string
	Side              money.Side
	Equity            money.Decimal
	RiskFraction      money.Decimal
	EntryPrice        money.Decimal
	StopPrice         money.Decimal
	Tick              money.Decimal
	TickValue         money.Decimal
	EntryType         orders.Type
	StopOffsetTicks   int64
	TargetOffsetTicks int64
}

// ScopeManager serializes risk-unit ("R") acquisition per contract: at
// most one open scope per contract at any time, with guaranteed release
// on every exit path including a panic unwinding through Run.
type ScopeManager struct {
	modifier OrderModifier

	mu   sync.Mutex
	open map[string]struct{}
}

// NewScopeManager constructs a ScopeManager placing brackets through
// modifier.
func NewScopeManager(modifier OrderModifier) *ScopeManager {
	return &ScopeManager{
		modifier: modifier,
		open:     make(map[string]struct{}),
	}
}

// Run acquires the scope for params.ContractID, sizes the trade, places
// the bracket, and invokes fn with the resulting bracket. The scope is
// released before Run returns, whatever fn does, including if fn
// panics, since the release is deferred immediately after acquisition
// succeeds. Once the bracket is placed, every exit from Run (including a
// panic or a cancelled ctx) cancels the bracket's orders that are still
// working. If a scope for the contract is already open, Run returns a
// CodeValidation error without placing anything.
func (m *ScopeManager) Run(ctx context.Context, p TradeParams, fn func(ctx context.Context, bracket *orders.Bracket) error) error {
	if err := m.acquire(p.ContractID); err != nil {
		return err
	}
	defer m.release(p.ContractID)

	size := PositionSize(p.Equity, p.RiskFraction, p.EntryPrice, p.StopPrice, p.Tick, p.TickValue)
	if size <= 0 {
		return tserrors.New(tserrors.CodeValidation, "risk-sized position rounds to zero contracts")
	}

	bracket, err := m.modifier.PlaceBracket(ctx, orders.BracketRequest{
		ContractID:        p.ContractID,
		Side:              p.Side,
		Size:              size,
		EntryType:         p.EntryType,
		EntryPrice:        p.EntryPrice,
		StopOffsetTicks:   p.StopOffsetTicks,
		TargetOffsetTicks: p.TargetOffsetTicks,
	})
	if err != nil {
		return err
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		for _, id := range []string{bracket.EntryID, bracket.StopID, bracket.TargetID} {
			if o, ok := m.modifier.Get(id); id != "" && ok && !o.Status.IsTerminal() {
				_ = m.modifier.Cancel(cleanupCtx, id)
			}
		}
	}()

	return fn(ctx, bracket)
}

// acquire claims contractID's scope slot, failing if one is already
// open.
func (m *ScopeManager) acquire(contractID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.open[contractID]; busy {
		return tserrors.New(tserrors.CodeValidation, "a trade scope is already open for "+contractID)
	}
	m.open[contractID] = struct{}{}
	return nil
}

// release frees contractID's scope slot. Idempotent: releasing an
// already-released (or never-acquired) contract is a no-op.
func (m *ScopeManager) release(contractID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, contractID)
}

// IsOpen reports whether contractID currently has an open scope.
func (m *ScopeManager) IsOpen(contractID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[contractID]
	return ok
}
