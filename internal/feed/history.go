package feed

import (
	"context"
	"time"

	"main/internal/model"
	"main/pkg/exception"
)

// Clock allows deterministic pacing control in tests.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// History replays a pre-loaded, finite, ordered sequence of klines.
// Speed > 0 paces emission by event-time deltas (1 = real time); zero
// replays as fast as the consumer drains.
type History struct {
	symbol string
	klines []model.Kline
	speed  float64
	clock  Clock

	index  int
	prevTS int64
}

// NewHistory creates a replay feed over the given bars.
func NewHistory(symbol string, klines []model.Kline, speed float64) *History {
	return &History{
		symbol: symbol,
		klines: klines,
		speed:  speed,
		clock:  realClock{},
	}
}

// WithClock swaps the pacing clock implementation.
func (h *History) WithClock(clock Clock) *History {
	if clock != nil {
		h.clock = clock
	}
	return h
}

// Next returns the next bar, pacing when configured.
func (h *History) Next(ctx context.Context) (model.MarketEvent, error) {
	if h.index >= len(h.klines) {
		return model.MarketEvent{}, exception.ErrFeedClosed
	}
	k := h.klines[h.index]
	h.index++

	if h.speed > 0 && k.Time > 0 {
		if h.prevTS > 0 {
			if delta := k.Time - h.prevTS; delta > 0 {
				sleep := time.Duration(float64(delta)/h.speed) * time.Millisecond
				if err := h.clock.Sleep(ctx, sleep); err != nil {
					return model.MarketEvent{}, err
				}
			}
		}
		h.prevTS = k.Time
	}
	return model.NewKlineEvent(h.symbol, k), nil
}
