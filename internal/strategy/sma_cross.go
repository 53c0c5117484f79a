package strategy

import (
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

var _ Strategy = (*SMACross)(nil)

// SMACross emits a buy when the fast moving average crosses above the slow
// one, and a sell on the opposite cross.
type SMACross struct {
	fast, slow int
	closes     []float64
	wasAbove   bool
	primed     bool
}

// NewSMACross creates a moving-average cross strategy, 0 < fast < slow.
func NewSMACross(fast, slow int) (*SMACross, error) {
	if fast <= 0 || slow <= 0 {
		return nil, errors.Wrap(exception.ErrConfiguration, "sma periods must be > 0")
	}
	if fast >= slow {
		return nil, errors.Wrap(exception.ErrConfiguration, "fast period must be below slow period")
	}
	return &SMACross{fast: fast, slow: slow}, nil
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) OnMarketEvent(ev model.MarketEvent) *model.SignalEvent {
	if ev.Kind != model.MarketEventKline {
		return nil
	}
	k := ev.Kline
	s.closes = append(s.closes, k.Close)
	if len(s.closes) > s.slow {
		s.closes = s.closes[len(s.closes)-s.slow:]
	}
	if len(s.closes) < s.slow {
		return nil
	}

	above := s.mean(s.fast) > s.mean(s.slow)
	defer func() {
		s.wasAbove = above
		s.primed = true
	}()
	if !s.primed || above == s.wasAbove {
		return nil
	}

	sig := enum.SignalSell
	if above {
		sig = enum.SignalBuy
	}
	return &model.SignalEvent{Signal: sig, Price: k.Close, Time: k.Time}
}

func (s *SMACross) mean(period int) float64 {
	sum := 0.0
	for _, c := range s.closes[len(s.closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}
