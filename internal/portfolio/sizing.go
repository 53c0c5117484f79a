package portfolio

import (
	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// Sizer decides the entry quantity from the account state. Implementations
// are consulted once per entry signal and must return a quantity >= 0.
type Sizer interface {
	Quantity(price, cash, equity float64) float64
}

// FixedFraction spends a fixed fraction of free cash per entry.
type FixedFraction struct {
	fraction float64
}

// NewFixedFraction creates a fixed cash fraction sizer, 0 < fraction <= 1.
func NewFixedFraction(fraction float64) (FixedFraction, error) {
	if fraction <= 0 || fraction > 1 {
		return FixedFraction{}, errors.Wrap(exception.ErrConfiguration, "sizing fraction must be in (0, 1]")
	}
	return FixedFraction{fraction: fraction}, nil
}

func (s FixedFraction) Quantity(price, cash, _ float64) float64 {
	if price <= 0 {
		return 0
	}
	return cash * s.fraction / price
}

// FixedQuantity buys the same quantity on every entry.
type FixedQuantity struct {
	quantity float64
}

// NewFixedQuantity creates a fixed quantity sizer, quantity > 0.
func NewFixedQuantity(quantity float64) (FixedQuantity, error) {
	if quantity <= 0 {
		return FixedQuantity{}, errors.Wrap(exception.ErrConfiguration, "sizing quantity must be > 0")
	}
	return FixedQuantity{quantity: quantity}, nil
}

func (s FixedQuantity) Quantity(_, _, _ float64) float64 {
	return s.quantity
}

// RiskBased sizes the entry so that the configured stop-loss distance
// risks a fixed fraction of current equity.
type RiskBased struct {
	riskPerTrade float64
	stopDistance float64
}

// NewRiskBased creates a risk-based sizer. stopDistance is the stop-loss
// fraction of entry price the quantity is derived from.
func NewRiskBased(riskPerTrade, stopDistance float64) (RiskBased, error) {
	if riskPerTrade <= 0 || riskPerTrade > 1 {
		return RiskBased{}, errors.Wrap(exception.ErrConfiguration, "risk per trade must be in (0, 1]")
	}
	if stopDistance <= 0 || stopDistance >= 1 {
		return RiskBased{}, errors.Wrap(exception.ErrConfiguration, "risk sizing needs a stop-loss distance in (0, 1)")
	}
	return RiskBased{riskPerTrade: riskPerTrade, stopDistance: stopDistance}, nil
}

func (s RiskBased) Quantity(price, _, equity float64) float64 {
	if price <= 0 {
		return 0
	}
	return equity * s.riskPerTrade / (price * s.stopDistance)
}
