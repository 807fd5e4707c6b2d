package risk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	"github.com/abdoElHodaky/tradingsuite/internal/orders"
	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeModifier struct {
	mu        sync.Mutex
	modifies  []money.Decimal
	modifyHit chan struct{}
}

func newFakeModifier() *fakeModifier {
	return &fakeModifier{modifyHit: make(chan struct{}, 64)}
}

func (f *fakeModifier) Modify(_ context.Context, _ string, _, newStopPrice money.Decimal, _ money.Size) error {
	f.mu.Lock()
	f.modifies = append(f.modifies, newStopPrice)
	f.mu.Unlock()
	f.modifyHit <- struct{}{}
	return nil
}

func (f *fakeModifier) PlaceBracket(context.Context, orders.BracketRequest) (*orders.Bracket, error) {
	return &orders.Bracket{}, nil
}

func (f *fakeModifier) Cancel(context.Context, string) error { return nil }

func (f *fakeModifier) Get(string) (orders.Order, bool) { return orders.Order{}, false }

func (f *fakeModifier) last() money.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modifies[len(f.modifies)-1]
}

func TestTrailingStop_LongMovesStopUpNeverDown(t *testing.T) {
	logger := zap.NewNop()
	reg := tasks.New(logger)
	mod := newFakeModifier()
	tick := money.MustNew("0.25")

	ts := NewTrailingStop(context.Background(), reg, mod, "stop-1", money.Buy, money.MustNew("5090"), tick, 4)

	ts.OnPrice(money.MustNew("5100")) // candidate 5099, improves from 5090
	waitFor(t, mod.modifyHit)
	assert.True(t, mod.last().Equal(money.MustNew("5099")), "got %s", mod.last())

	ts.OnPrice(money.MustNew("5095")) // candidate 5094, worse than 5099: no modify
	select {
	case <-mod.modifyHit:
		t.Fatal("unexpected modify on a worse price")
	case <-time.After(50 * time.Millisecond):
	}

	ts.Cancel()
}

func TestTrailingStop_ShortMovesStopDownNeverUp(t *testing.T) {
	logger := zap.NewNop()
	reg := tasks.New(logger)
	mod := newFakeModifier()
	tick := money.MustNew("0.25")

	ts := NewTrailingStop(context.Background(), reg, mod, "stop-2", money.Sell, money.MustNew("5110"), tick, 4)

	ts.OnPrice(money.MustNew("5100")) // candidate 5101, improves from 5110
	waitFor(t, mod.modifyHit)
	assert.True(t, mod.last().Equal(money.MustNew("5101")), "got %s", mod.last())

	ts.Cancel()
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trailing stop modify")
	}
}
