package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"main/internal/model"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded queue carrying market events from a producer (the
// live feed) to a single consumer (the engine). Publish blocks when the
// consumer falls behind, so memory stays bounded under a fast feed.
//
// The event channel itself is never closed: closing is signalled through
// done, so a Publish parked on a full queue wakes with ErrQueueClosed
// instead of panicking on a closed channel.
type Queue struct {
	ch      chan model.MarketEvent
	done    chan struct{}
	closed  uint32
	failure error
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan model.MarketEvent, capacity),
		done: make(chan struct{}),
	}
}

// Publish enqueues an event, blocking until there is room, the queue
// closes, or the context is done.
func (q *Queue) Publish(ctx context.Context, e model.MarketEvent) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- e:
		return nil
	}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e model.MarketEvent) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Next blocks until an event arrives, the queue closes, or the context is
// done. The second return value is false once the queue is drained.
func (q *Queue) Next(ctx context.Context) (model.MarketEvent, bool, error) {
	select {
	case <-ctx.Done():
		return model.MarketEvent{}, false, ctx.Err()
	case e := <-q.ch:
		return e, true, nil
	case <-q.done:
		// Buffered events stay consumable after close.
		select {
		case e := <-q.ch:
			return e, true, nil
		default:
			return model.MarketEvent{}, false, nil
		}
	}
}

// Close stops the queue from accepting new events. Buffered events remain
// consumable.
func (q *Queue) Close() {
	q.CloseWithError(nil)
}

// CloseWithError closes the queue and records the cause of an abnormal
// stream end, readable through Err once the queue is drained.
func (q *Queue) CloseWithError(err error) {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		q.failure = err
		close(q.done)
	}
}

// Err returns the failure the queue was closed with, or nil while the
// queue is open or after a clean close.
func (q *Queue) Err() error {
	select {
	case <-q.done:
		return q.failure
	default:
		return nil
	}
}
