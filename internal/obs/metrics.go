// Package obs collects lightweight run counters that are safe to read
// while an engine is running.
package obs

import (
	"sync/atomic"

	"main/internal/model/enum"
)

const maxSignal = int(enum.SignalHold)

// Metrics counts engine-loop outcomes.
type Metrics struct {
	events        uint64
	invalidEvents uint64
	signalCounts  [maxSignal + 1]uint64
	ordersOpened  uint64
	ordersDenied  uint64
	trades        uint64
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Events        uint64
	InvalidEvents uint64
	SignalCounts  map[enum.Signal]uint64
	OrdersOpened  uint64
	OrdersDenied  uint64
	Trades        uint64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts one consumed market event.
func (m *Metrics) ObserveEvent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.events, 1)
}

// ObserveInvalidEvent counts one rejected market event.
func (m *Metrics) ObserveInvalidEvent() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.invalidEvents, 1)
}

// ObserveSignal counts one strategy signal.
func (m *Metrics) ObserveSignal(sig enum.Signal) {
	if m == nil {
		return
	}
	if idx := int(sig); idx >= 0 && idx <= maxSignal {
		atomic.AddUint64(&m.signalCounts[idx], 1)
	}
}

// ObserveOrderOpened counts one order accepted by the broker.
func (m *Metrics) ObserveOrderOpened() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersOpened, 1)
}

// ObserveOrderDenied counts one recoverable order rejection.
func (m *Metrics) ObserveOrderDenied() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersDenied, 1)
}

// ObserveTrades counts executed trades.
func (m *Metrics) ObserveTrades(n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.trades, uint64(n))
}

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		Events:        atomic.LoadUint64(&m.events),
		InvalidEvents: atomic.LoadUint64(&m.invalidEvents),
		SignalCounts:  make(map[enum.Signal]uint64, maxSignal),
		OrdersOpened:  atomic.LoadUint64(&m.ordersOpened),
		OrdersDenied:  atomic.LoadUint64(&m.ordersDenied),
		Trades:        atomic.LoadUint64(&m.trades),
	}
	for idx := range m.signalCounts {
		if count := atomic.LoadUint64(&m.signalCounts[idx]); count > 0 {
			snap.SignalCounts[enum.Signal(idx)] = count
		}
	}
	return snap
}
