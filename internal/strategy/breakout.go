package strategy

import (
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

var _ Strategy = (*Breakout)(nil)

// Breakout buys when the close breaks above a level and sells once the
// close retraces a fixed fraction below the entry benchmark.
type Breakout struct {
	enterAbove  float64
	exitRetrace float64
	benchmark   float64
	holding     bool
}

// NewBreakout creates a breakout strategy. exitRetrace is the sell
// threshold as a fraction of the entry close, in (0, 1).
func NewBreakout(enterAbove, exitRetrace float64) (*Breakout, error) {
	if enterAbove <= 0 {
		return nil, errors.Wrap(exception.ErrConfiguration, "entry level must be > 0")
	}
	if exitRetrace <= 0 || exitRetrace >= 1 {
		return nil, errors.Wrap(exception.ErrConfiguration, "exit retrace must be in (0, 1)")
	}
	return &Breakout{enterAbove: enterAbove, exitRetrace: exitRetrace}, nil
}

func (s *Breakout) Name() string { return "breakout" }

func (s *Breakout) OnMarketEvent(ev model.MarketEvent) *model.SignalEvent {
	if ev.Kind != model.MarketEventKline {
		return nil
	}
	k := ev.Kline
	if !s.holding {
		if k.Close > s.enterAbove {
			s.holding = true
			s.benchmark = k.Close
			return &model.SignalEvent{Signal: enum.SignalBuy, Price: k.Close, Time: k.Time}
		}
		return nil
	}
	if k.Close < s.benchmark*(1-s.exitRetrace) {
		s.holding = false
		return &model.SignalEvent{Signal: enum.SignalSell, Price: k.Close, Time: k.Time}
	}
	return nil
}
