package eventbus

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/abdoElHodaky/tradingsuite/pkg/tasks"
	"go.uber.org/zap"
)

// Handler receives one event. Handlers must not block unboundedly; the bus
// cancels them at the shutdown drain deadline.
type Handler func(ctx context.Context, ev Event)

// Bus is a non-blocking, typed pub/sub dispatcher. Emit returns
// immediately; each handler for the event runs in its own managed task
// (pkg/tasks), scheduled in priority order. The bus never holds
// a lock across a handler invocation.
type Bus struct {
	logger   *zap.Logger
	registry *tasks.Registry

	mu   sync.RWMutex
	subs map[Kind][]subscription

	drainDeadline time.Duration
}

type subscription struct {
	id       uint64
	priority int
	handler  Handler
}

// New creates a Bus. registry is the managed-task supervisor the bus
// schedules handler invocations onto; it is typically the Suite's shared
// registry so shutdown ordering stays correct.
func New(logger *zap.Logger, registry *tasks.Registry) *Bus {
	return &Bus{
		logger:        logger,
		registry:      registry,
		subs:          make(map[Kind][]subscription),
		drainDeadline: 2 * time.Second,
	}
}

// Subscription lets a caller unsubscribe.
type Subscription struct {
	bus  *Bus
	kind Kind
	id   uint64
}

// Unsubscribe removes the handler; safe to call more than once.
func (s Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	list := s.bus.subs[s.kind]
	for i, sub := range list {
		if sub.id == s.id {
			s.bus.subs[s.kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

var nextSubID uint64

// Subscribe registers handler for kind at priority (default 0; higher
// runs first among handlers for the same emitted event).
func (b *Bus) Subscribe(kind Kind, priority int, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	nextSubID++
	sub := subscription{id: nextSubID, priority: priority, handler: handler}
	b.subs[kind] = append(b.subs[kind], sub)
	return Subscription{bus: b, kind: kind, id: sub.id}
}

// Emit dispatches ev to every subscriber of ev.Kind(). It never blocks on
// handler execution; each handler runs as its own managed task. Handlers
// for the same event type observe events in emission order because Emit
// itself is synchronous up to the point of scheduling; priority only
// orders the per-handler *task launch* for this single event, via a
// max-heap over priority.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	b.mu.RLock()
	subsSnapshot := append([]subscription(nil), b.subs[ev.Kind()]...)
	b.mu.RUnlock()

	if len(subsSnapshot) == 0 {
		return
	}

	pq := make(priorityQueue, len(subsSnapshot))
	copy(pq, subsSnapshot)
	heap.Init(&pq)

	for pq.Len() > 0 {
		sub := heap.Pop(&pq).(subscription)
		handler := sub.handler
		name := "eventbus." + string(ev.Kind())
		b.registry.Spawn(ctx, name, func(taskCtx context.Context) error {
			handler(taskCtx, ev)
			return nil
		})
	}
}

// Shutdown drains in-flight handler tasks; delegated to the shared
// registry by the Suite, so Bus itself holds no deadline state beyond the
// default used by callers that don't share a registry.
func (b *Bus) Shutdown() {
	b.registry.Shutdown(b.drainDeadline)
}

// priorityQueue orders subscriptions so the highest priority pops first.
type priorityQueue []subscription

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].priority > pq[j].priority }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(subscription)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
