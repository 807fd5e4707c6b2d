package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus() (*Bus, *tasks.Registry) {
	logger := zap.NewNop()
	reg := tasks.New(logger)
	return New(logger, reg), reg
}

func TestEmit_DispatchesToAllSubscribers(t *testing.T) {
	bus, reg := newTestBus()
	defer reg.Shutdown(time.Second)

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Add(2)

	bus.Subscribe(KindTrade, 0, func(ctx context.Context, ev Event) {
		defer wg.Done()
		mu.Lock()
		got = append(got, "a")
		mu.Unlock()
	})
	bus.Subscribe(KindTrade, 0, func(ctx context.Context, ev Event) {
		defer wg.Done()
		mu.Lock()
		got = append(got, "b")
		mu.Unlock()
	})

	seq := &Sequencer{}
	bus.Emit(context.Background(), NewTrade(seq, "CON.F.CME.ES.Z25", "5137.50", 2, "Bid"))

	waitOrFail(t, &wg)
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestEmit_NonBlockingOnSlowHandler(t *testing.T) {
	bus, reg := newTestBus()
	defer reg.Shutdown(3 * time.Second)

	release := make(chan struct{})
	bus.Subscribe(KindTrade, 0, func(ctx context.Context, ev Event) {
		<-release
	})

	seq := &Sequencer{}
	start := time.Now()
	bus.Emit(context.Background(), NewTrade(seq, "X", "1", 1, "Unknown"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	close(release)
}

func TestSequencer_Monotonic(t *testing.T) {
	seq := &Sequencer{}
	a := seq.Next()
	b := seq.Next()
	assert.Greater(t, b, a)
}

func TestSubscription_Unsubscribe(t *testing.T) {
	bus, reg := newTestBus()
	defer reg.Shutdown(time.Second)

	called := false
	sub := bus.Subscribe(KindTrade, 0, func(ctx context.Context, ev Event) { called = true })
	sub.Unsubscribe()

	seq := &Sequencer{}
	bus.Emit(context.Background(), NewTrade(seq, "X", "1", 1, "Unknown"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, called)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "handlers did not complete in time")
	}
}
