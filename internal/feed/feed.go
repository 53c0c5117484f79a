// Package feed supplies ordered market events to the engine. Feeds are
// lazy, ordered and non-restartable; end-of-stream is signalled distinctly
// from errors.
package feed

import (
	"context"

	"main/internal/model"
)

// Feed produces the next market event. Next blocks (backtest: never; live:
// until an event arrives) and returns exception.ErrFeedClosed once the
// stream ends cleanly. Any other error is a feed failure.
type Feed interface {
	Next(ctx context.Context) (model.MarketEvent, error)
}
