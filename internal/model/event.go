package model

import "main/internal/model/enum"

// MarketEventKind describes the meaning of a market event payload.
type MarketEventKind uint8

const (
	MarketEventUnknown MarketEventKind = iota
	MarketEventKline
)

// MarketEvent is the unit flowing from a feed into the engine. Immutable
// once constructed; only kline events are produced today.
type MarketEvent struct {
	Kind   MarketEventKind
	Symbol string
	Kline  Kline
}

// NewKlineEvent wraps a kline into a market event.
func NewKlineEvent(symbol string, k Kline) MarketEvent {
	return MarketEvent{
		Kind:   MarketEventKline,
		Symbol: symbol,
		Kline:  k,
	}
}

// SignalEvent is a strategy's directional recommendation at a point in time.
type SignalEvent struct {
	Signal enum.Signal
	Price  float64
	Time   int64
}
