// Package tasks provides the managed-task registry used everywhere a
// component would otherwise reach for a bare `go func(){}()`. Every spawned
// task is tracked, every task installs a completion callback that collects
// its panic/error, and shutdown cancels tasks in reverse registration order
// with a bounded drain deadline. Fire-and-forget spawning is forbidden
// outside this package.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Func is the body of a managed task. It must return promptly once ctx is
// cancelled.
type Func func(ctx context.Context) error

// Registry tracks every long-running activity owned by a single component
// tree (one per Suite). Tasks are cancelled in reverse registration order.
type Registry struct {
	logger *zap.Logger

	mu      sync.Mutex
	tasks   []*handle
	closing bool
}

type handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates an empty registry bound to logger.
func New(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

// Spawn starts fn in its own goroutine under a child of parent, tracks it,
// and installs a completion callback that records any returned error (the
// Go-idiomatic stand-in for exception capture). It returns immediately.
func (r *Registry) Spawn(parent context.Context, name string, fn Func) {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		r.logger.Warn("task spawn refused after shutdown", zap.String("task", name))
		return
	}
	ctx, cancel := context.WithCancel(parent)
	h := &handle{name: name, cancel: cancel, done: make(chan struct{})}
	r.tasks = append(r.tasks, h)
	r.mu.Unlock()

	go func() {
		defer close(h.done)
		defer func() {
			if p := recover(); p != nil {
				h.err = toError(p)
				r.logger.Error("managed task panicked",
					zap.String("task", name), zap.Any("panic", p))
			}
		}()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			h.err = err
			r.logger.Error("managed task returned error",
				zap.String("task", name), zap.Error(err))
		}
	}()
}

// Shutdown cancels every tracked task in reverse registration order and
// waits up to deadline per task for it to drain.
func (r *Registry) Shutdown(deadline time.Duration) {
	r.mu.Lock()
	r.closing = true
	ordered := make([]*handle, len(r.tasks))
	copy(ordered, r.tasks)
	r.mu.Unlock()

	for i := len(ordered) - 1; i >= 0; i-- {
		h := ordered[i]
		h.cancel()
		select {
		case <-h.done:
		case <-time.After(deadline):
			r.logger.Warn("managed task did not drain before deadline",
				zap.String("task", h.name), zap.Duration("deadline", deadline))
		}
	}
}

// Errors returns the errors recorded by completed tasks, keyed by name.
func (r *Registry) Errors() map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]error)
	for _, h := range r.tasks {
		select {
		case <-h.done:
			if h.err != nil {
				out[h.name] = h.err
			}
		default:
		}
	}
	return out
}

func toError(p interface{}) error {
	if err, ok := p.(error); ok {
		return err
	}
	return &panicError{p}
}

type panicError struct{ v interface{} }

func (p *panicError) Error() string { return "panic: " + toString(p.v) }

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if e, ok := v.(error); ok {
		return e.Error()
	}
	return "unknown panic value"
}
