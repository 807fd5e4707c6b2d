package orders

import (
	"context"
	"time"
)

// LinkOCO makes a and b mutually cancelling. Links are bidirectional and
// unique: linking either side invalidates whatever link it previously
// held.
func (e *Engine) LinkOCO(a, b string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prior, ok := e.oco[a]; ok {
		delete(e.oco, prior)
	}
	if prior, ok := e.oco[b]; ok {
		delete(e.oco, prior)
	}
	e.oco[a] = b
	e.oco[b] = a
}

// scheduleOCOCancel looks up brokerID's OCO sibling and, if one exists,
// cancels it as a managed task rather than inline, so a failed sibling
// cancellation is captured and logged rather than silently dropped.
func (e *Engine) scheduleOCOCancel(ctx context.Context, brokerID string) {
	e.mu.Lock()
	sibling, ok := e.oco[brokerID]
	if ok {
		delete(e.oco, brokerID)
		delete(e.oco, sibling)
	}
	e.mu.Unlock()
	if !ok || e.registry == nil {
		return
	}

	e.registry.Spawn(ctx, "orders.oco_cancel."+sibling, func(taskCtx context.Context) error {
		cancelCtx, cancel := context.WithTimeout(taskCtx, 10*time.Second)
		defer cancel()
		return e.Cancel(cancelCtx, sibling)
	})
}
