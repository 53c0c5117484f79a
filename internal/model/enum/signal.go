package enum

// Signal buy, sell, hold
type Signal uint8

const (
	_signal_beg Signal = iota
	SignalBuy
	SignalSell
	SignalHold
	_signal_end
)

func (s Signal) IsAvailable() bool {
	return s > _signal_beg && s < _signal_end
}

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	case SignalHold:
		return "hold"
	default:
		return "unknown"
	}
}
