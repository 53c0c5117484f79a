package model

import (
	"math"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

// Kline is one OHLCV price bar. Time is the bar timestamp in millisecond
// epoch and must be non-decreasing within a stream.
type Kline struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Validate classifies records no downstream consumer can price against.
// Upstream feeds occasionally emit bars with high < low; callers decide
// whether that aborts the run (backtest) or skips the bar (live).
func (k Kline) Validate() error {
	if k.Time <= 0 {
		return errors.Wrap(exception.ErrInvalidMarketData, "non-positive timestamp")
	}
	for _, v := range [...]float64{k.Open, k.High, k.Low, k.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.Wrap(exception.ErrInvalidMarketData, "unusable price")
		}
	}
	if k.Close == 0 {
		return errors.Wrap(exception.ErrInvalidMarketData, "zero close price")
	}
	if k.High < k.Low {
		return errors.Wrap(exception.ErrInvalidMarketData, "high below low")
	}
	if math.IsNaN(k.Volume) || k.Volume < 0 {
		return errors.Wrap(exception.ErrInvalidMarketData, "negative volume")
	}
	return nil
}
