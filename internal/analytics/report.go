// Package analytics derives performance statistics from trade and equity
// histories. Everything here is a pure function of its inputs, safe to
// call mid-run without touching engine state.
package analytics

import (
	"math"

	"main/internal/model"
	"main/internal/model/enum"
)

// Report summarizes one run.
type Report struct {
	InitialEquity float64
	FinalEquity   float64
	TotalReturn   float64 // fraction, 0.1 = +10%
	MaxDrawdown   float64 // largest peak-to-trough decline, fraction of peak
	TradeCount    int
	RoundTrips    int
	WinRate       float64 // fraction of profitable round trips
	AvgWin        float64
	AvgLoss       float64 // reported as a negative number
	SharpeRatio   float64 // per-event return mean over stddev
}

// Summarize computes a report over an equity curve and its trade history.
func Summarize(equity []model.EquityPoint, trades []model.Trade) Report {
	var r Report
	if len(equity) == 0 {
		return r
	}
	r.InitialEquity = equity[0].Equity
	r.FinalEquity = equity[len(equity)-1].Equity
	if r.InitialEquity != 0 {
		r.TotalReturn = r.FinalEquity/r.InitialEquity - 1
	}
	r.MaxDrawdown = MaxDrawdown(equity)
	r.TradeCount = len(trades)
	r.RoundTrips, r.WinRate, r.AvgWin, r.AvgLoss = roundTripStats(trades)
	r.SharpeRatio = SharpeRatio(equity)
	return r
}

// MaxDrawdown returns the largest peak-to-trough equity decline as a
// fraction of the peak.
func MaxDrawdown(equity []model.EquityPoint) float64 {
	var peak, worst float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Equity) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// SharpeRatio computes mean over standard deviation of the per-point
// return series. No annualization: the unit is one input event.
func SharpeRatio(equity []model.EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range returns {
		mean += v
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, v := range returns {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// roundTripStats pairs buys and sells FIFO into round trips and grades
// each by realized pnl net of fees.
func roundTripStats(trades []model.Trade) (trips int, winRate, avgWin, avgLoss float64) {
	type lot struct {
		qty  float64
		cost float64 // per-unit cost including fee share
	}
	var (
		lots      []lot
		wins      int
		winTotal  float64
		lossTotal float64
		losses    int
	)
	for _, t := range trades {
		switch t.Side {
		case enum.OrderSideBuy:
			if t.Quantity <= 0 {
				continue
			}
			lots = append(lots, lot{qty: t.Quantity, cost: (t.Value + t.Fee) / t.Quantity})
		case enum.OrderSideSell:
			qty := t.Quantity
			if qty <= 0 {
				continue
			}
			proceeds := (t.Value - t.Fee) / qty
			for qty > 0 && len(lots) > 0 {
				matched := math.Min(qty, lots[0].qty)
				pnl := (proceeds - lots[0].cost) * matched
				trips++
				if pnl > 0 {
					wins++
					winTotal += pnl
				} else {
					losses++
					lossTotal += pnl
				}
				lots[0].qty -= matched
				qty -= matched
				if lots[0].qty <= 0 {
					lots = lots[1:]
				}
			}
		}
	}
	if trips > 0 {
		winRate = float64(wins) / float64(trips)
	}
	if wins > 0 {
		avgWin = winTotal / float64(wins)
	}
	if losses > 0 {
		avgLoss = lossTotal / float64(losses)
	}
	return trips, winRate, avgWin, avgLoss
}
