// Package strategy defines the capability the engine feeds market events
// into, plus small reference implementations used by the CLIs and tests.
package strategy

import "main/internal/model"

// Strategy turns market events into optional signals. OnMarketEvent is
// called exactly once per event, synchronously; a nil result means no
// recommendation. Implementations must not touch portfolio or broker
// state.
type Strategy interface {
	Name() string
	OnMarketEvent(ev model.MarketEvent) *model.SignalEvent
}
