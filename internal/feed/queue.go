package feed

import (
	"context"

	"github.com/yanun0323/errors"

	"main/internal/bus"
	"main/internal/model"
	"main/pkg/exception"
)

var _ Feed = (*QueueFeed)(nil)

// QueueFeed adapts a bus queue into a live feed. Reconnects happen behind
// the queue: a resumed stream keeps publishing into the same queue, so the
// engine never sees a new feed instance. A stream that ends for good closes
// the queue with its cause, surfaced here as a feed failure once drained.
type QueueFeed struct {
	queue *bus.Queue
}

// NewQueueFeed wraps a queue as a feed.
func NewQueueFeed(queue *bus.Queue) *QueueFeed {
	return &QueueFeed{queue: queue}
}

// Next suspends until the next queued event or queue closure.
func (f *QueueFeed) Next(ctx context.Context) (model.MarketEvent, error) {
	e, ok, err := f.queue.Next(ctx)
	if err != nil {
		return model.MarketEvent{}, err
	}
	if !ok {
		if cause := f.queue.Err(); cause != nil {
			return model.MarketEvent{}, errors.Wrap(exception.ErrFeed, cause.Error())
		}
		return model.MarketEvent{}, exception.ErrFeedClosed
	}
	return e, nil
}
