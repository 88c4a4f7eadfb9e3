package engine

import (
	"context"
	"errors"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("engine stopped")

// Submit enqueues a state-changing message and waits for its receipt.
// Safe to call from any goroutine while Run is serving.
func (e *Engine) Submit(ctx context.Context, msg Message) (*Receipt, error) {
	return e.submit(ctx, Event{Type: EventTypeExecute, Message: msg})
}

// SubmitQuery enqueues a static message and waits for its receipt.
func (e *Engine) SubmitQuery(ctx context.Context, msg Message) (*Receipt, error) {
	return e.submit(ctx, Event{Type: EventTypeQuery, Message: msg})
}

func (e *Engine) submit(ctx context.Context, ev Event) (*Receipt, error) {
	ev.reply = make(chan result, 1)
	if !e.queue.Enqueue(ev) {
		return nil, ErrStopped
	}
	e.metrics.setQueueDepth(e.queue.Len())

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ev.reply:
		return r.receipt, r.err
	}
}

// Run processes submitted messages one at a time until ctx is cancelled
// or Stop is called. It must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started", "gas_limit", e.gasLimit, "seq", e.clock.Current())
	defer e.logger.Info("engine stopped", "seq", e.clock.Current())

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			e.metrics.setQueueDepth(e.queue.Len())
			e.process(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.queue.Close()
			e.failPending(ctx.Err())
			return ctx.Err()
		case _, open := <-e.queue.Wait():
			if !open {
				// Closed: finish what was already accepted.
				for {
					ev, ok := e.queue.TryDequeue()
					if !ok {
						return nil
					}
					e.process(ctx, ev)
				}
			}
		}
	}
}

// Stop closes the queue. Run returns once accepted messages are processed.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) process(ctx context.Context, ev Event) {
	var r result
	switch ev.Type {
	case EventTypeExecute:
		r.receipt, r.err = e.Execute(ctx, ev.Message)
	case EventTypeQuery:
		r.receipt, r.err = e.Query(ctx, ev.Message)
	default:
		r.err = errors.New("unknown event type " + ev.Type.String())
	}
	if r.err != nil {
		e.logger.Error("message failed",
			"kind", ev.Type.String(),
			"to", ev.Message.To,
			"error", r.err,
		)
	}
	ev.reply <- r
}

func (e *Engine) failPending(err error) {
	for _, ev := range e.queue.drain() {
		ev.reply <- result{err: err}
	}
}
