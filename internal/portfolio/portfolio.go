// Package portfolio owns the cash/position/equity ledger, enforces risk
// and position-sizing policy, and turns signals into orders executed by a
// broker.
package portfolio

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/order"
	"main/pkg/exception"
)

const (
	noteStopLoss   = "stop-loss"
	noteTakeProfit = "take-profit"
	noteLiquidate  = "max-drawdown liquidation"
)

// RiskConfig bundles the optional protective rules. A zero value disables
// the corresponding rule.
type RiskConfig struct {
	StopLossPct    float64 `json:"stopLossPct"`
	TakeProfitPct  float64 `json:"takeProfitPct"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`
}

// Validate checks if the risk rules are usable.
func (c RiskConfig) Validate() error {
	if c.StopLossPct < 0 || c.StopLossPct >= 1 {
		return errors.Wrap(exception.ErrConfiguration, "stop-loss pct must be in [0, 1)")
	}
	if c.TakeProfitPct < 0 {
		return errors.Wrap(exception.ErrConfiguration, "take-profit pct must be >= 0")
	}
	if c.MaxDrawdownPct < 0 || c.MaxDrawdownPct >= 1 {
		return errors.Wrap(exception.ErrConfiguration, "max drawdown pct must be in [0, 1)")
	}
	return nil
}

// Config is the portfolio's configuration surface. Commission and Slippage
// must mirror the broker's cost model so affordability clamping agrees
// with acceptance-time checks.
type Config struct {
	Symbol          string
	InitialCash     float64
	Commission      float64
	Slippage        float64
	MaxPositionSize float64 // max absolute quantity held, 0 = unlimited
	MaxPositions    int     // max concurrent entry lots, 0 = unlimited
	Risk            RiskConfig
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return errors.Wrap(exception.ErrConfiguration, "symbol is empty")
	}
	if c.InitialCash <= 0 {
		return errors.Wrap(exception.ErrConfiguration, "initial cash must be > 0")
	}
	if c.Commission < 0 || c.Slippage < 0 {
		return errors.Wrap(exception.ErrConfiguration, "commission and slippage must be >= 0")
	}
	if c.MaxPositionSize < 0 {
		return errors.Wrap(exception.ErrConfiguration, "max position size must be >= 0")
	}
	if c.MaxPositions < 0 {
		return errors.Wrap(exception.ErrConfiguration, "max positions must be >= 0")
	}
	return c.Risk.Validate()
}

// Portfolio translates signals into orders and keeps the account ledger
// consistent after every fill. It assumes exclusive single-threaded
// ownership by one engine run.
type Portfolio struct {
	cfg    Config
	broker broker.Broker
	sizer  Sizer

	cash     float64
	position float64
	entries  int

	lastPrice  float64
	peakEquity float64
	equity     []model.EquityPoint
	trades     []model.Trade

	// protective maps a stop-loss/take-profit order id to its sibling,
	// so filling one cancels the other.
	protective map[string]string
}

// New creates a portfolio around a broker. sizer may be nil, in which case
// entry signals are skipped with a warning.
func New(cfg Config, b broker.Broker, sizer Sizer) (*Portfolio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.Wrap(exception.ErrConfiguration, "nil broker")
	}
	return &Portfolio{
		cfg:        cfg,
		broker:     b,
		sizer:      sizer,
		cash:       cfg.InitialCash,
		peakEquity: cfg.InitialCash,
		protective: make(map[string]string),
	}, nil
}

// OnSignal translates a strategy signal into orders and reports whether an
// order was actually submitted: a sell while flat, like a hold, submits
// nothing. Rejections (insufficient balance, sizing to zero, position
// limits) are recoverable: the caller logs them and the run continues.
func (p *Portfolio) OnSignal(sig model.SignalEvent) (bool, error) {
	switch sig.Signal {
	case enum.SignalHold:
		return false, nil
	case enum.SignalBuy:
		return p.enter(sig)
	case enum.SignalSell:
		return p.flatten(sig.Time, "")
	default:
		return false, errors.Wrap(exception.ErrInvalidOrder, "unknown signal")
	}
}

// OnPrice forwards a price update to the broker, applies resulting fills
// to the ledger, enforces drawdown liquidation and appends one equity
// point. It returns the trades executed at this tick.
func (p *Portfolio) OnPrice(price float64, ts int64) ([]model.Trade, error) {
	fills, err := p.broker.UpdateMarketPrice(p.cfg.Symbol, price, ts)
	if err != nil {
		return nil, err
	}
	for _, t := range fills {
		p.apply(t, ts)
	}
	p.lastPrice = price

	eq := p.equityAt(price)
	if p.breached(eq) {
		liquidated, err := p.liquidate(price, ts)
		if err != nil {
			return fills, err
		}
		fills = append(fills, liquidated...)
		eq = p.equityAt(price)
	}
	if eq > p.peakEquity {
		p.peakEquity = eq
	}
	p.appendEquity(ts, eq)
	return fills, nil
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// Position returns the signed held quantity, positive meaning long.
func (p *Portfolio) Position() float64 { return p.position }

// Equity returns the append-only equity curve.
func (p *Portfolio) Equity() []model.EquityPoint { return p.equity }

// Trades returns the append-only trade history.
func (p *Portfolio) Trades() []model.Trade { return p.trades }

// LastEquity returns the most recent equity value, or initial cash before
// the first price update.
func (p *Portfolio) LastEquity() float64 {
	if len(p.equity) == 0 {
		return p.cfg.InitialCash
	}
	return p.equity[len(p.equity)-1].Equity
}

func (p *Portfolio) enter(sig model.SignalEvent) (bool, error) {
	if p.sizer == nil {
		return false, errors.Wrap(exception.ErrInvalidOrder, "no sizing policy configured")
	}
	if p.cfg.MaxPositions > 0 && p.entries >= p.cfg.MaxPositions {
		return false, errors.Wrap(exception.ErrInvalidOrder, "max concurrent positions reached")
	}

	qty := p.sizer.Quantity(sig.Price, p.cash, p.equityAt(sig.Price))
	if p.cfg.MaxPositionSize > 0 && p.position+qty > p.cfg.MaxPositionSize {
		qty = p.cfg.MaxPositionSize - p.position
	}
	if affordable := p.affordable(sig.Price); qty > affordable {
		qty = affordable
	}
	if qty <= 0 {
		return false, errors.Wrap(exception.ErrInsufficientBalance, "entry sized to zero")
	}

	o, err := order.New(p.cfg.Symbol, enum.OrderTypeMarket, enum.OrderSideBuy, qty, 0, sig.Time)
	if err != nil {
		return false, err
	}
	if _, err := p.broker.SubmitOrder(o); err != nil {
		return false, err
	}
	return true, nil
}

// flatten cancels protective orders and market-sells the whole position.
// It reports whether a sell order was submitted: flattening while flat is
// a no-op.
func (p *Portfolio) flatten(ts int64, note string) (bool, error) {
	for id := range p.protective {
		if err := p.broker.CancelOrder(p.cfg.Symbol, id); err != nil && !errors.Is(err, exception.ErrOrderNotCancellable) {
			logs.Warnf("cancel protective order %s, err: %+v", id, err)
		}
		delete(p.protective, id)
	}
	if p.position <= 0 {
		return false, nil
	}
	o, err := order.New(p.cfg.Symbol, enum.OrderTypeMarket, enum.OrderSideSell, p.position, 0, ts)
	if err != nil {
		return false, err
	}
	o.Note = note
	if _, err := p.broker.SubmitOrder(o); err != nil {
		return false, err
	}
	return true, nil
}

// apply folds one fill into the ledger and maintains protective orders.
func (p *Portfolio) apply(t model.Trade, ts int64) {
	p.trades = append(p.trades, t)
	switch t.Side {
	case enum.OrderSideBuy:
		p.cash -= t.Value + t.Fee
		p.position += t.Quantity
		p.entries++
		p.attachProtective(t, ts)
	case enum.OrderSideSell:
		p.cash += t.Value - t.Fee
		p.position -= t.Quantity
		if p.position <= 0 {
			p.entries = 0
		}
		if sibling, ok := p.protective[t.OrderID]; ok {
			delete(p.protective, t.OrderID)
			// A lone stop-loss or take-profit has no sibling to cancel.
			if sibling != "" {
				delete(p.protective, sibling)
				if err := p.broker.CancelOrder(p.cfg.Symbol, sibling); err != nil && !errors.Is(err, exception.ErrOrderNotCancellable) {
					logs.Warnf("cancel sibling order %s, err: %+v", sibling, err)
				}
			}
		}
	}
}

// attachProtective submits the stop-loss/take-profit pair for a fresh
// entry fill, priced off the effective entry price.
func (p *Portfolio) attachProtective(entry model.Trade, ts int64) {
	var stop, take *order.Order
	if pct := p.cfg.Risk.StopLossPct; pct > 0 {
		price := mulPct(entry.Price, 1-pct)
		o, err := order.New(p.cfg.Symbol, enum.OrderTypeStopLoss, enum.OrderSideSell, entry.Quantity, price, ts)
		if err == nil {
			o.Note = noteStopLoss
			stop = o
		}
	}
	if pct := p.cfg.Risk.TakeProfitPct; pct > 0 {
		price := mulPct(entry.Price, 1+pct)
		o, err := order.New(p.cfg.Symbol, enum.OrderTypeTakeProfit, enum.OrderSideSell, entry.Quantity, price, ts)
		if err == nil {
			o.Note = noteTakeProfit
			take = o
		}
	}
	var submitted []*order.Order
	for _, o := range [...]*order.Order{stop, take} {
		if o == nil {
			continue
		}
		if _, err := p.broker.SubmitOrder(o); err != nil {
			logs.Warnf("submit protective order, err: %+v", err)
			// Roll back the leg that did make it in so the pair never
			// ends up half-armed.
			for _, prev := range submitted {
				if cerr := p.broker.CancelOrder(p.cfg.Symbol, prev.ID); cerr != nil {
					logs.Warnf("cancel protective order %s, err: %+v", prev.ID, cerr)
				}
			}
			return
		}
		submitted = append(submitted, o)
	}
	if stop != nil && take != nil {
		p.protective[stop.ID] = take.ID
		p.protective[take.ID] = stop.ID
	} else if stop != nil {
		p.protective[stop.ID] = ""
	} else if take != nil {
		p.protective[take.ID] = ""
	}
}

func (p *Portfolio) breached(equity float64) bool {
	pct := p.cfg.Risk.MaxDrawdownPct
	if pct <= 0 || p.peakEquity <= 0 || p.position <= 0 {
		return false
	}
	return equity < p.peakEquity*(1-pct)
}

// liquidate force-flattens on a drawdown breach and settles the sale at
// the same tick so the breach is closed within this event.
func (p *Portfolio) liquidate(price float64, ts int64) ([]model.Trade, error) {
	logs.Warnf("max drawdown breached, liquidating position %.8f", p.position)
	if _, err := p.flatten(ts, noteLiquidate); err != nil {
		return nil, err
	}
	fills, err := p.broker.UpdateMarketPrice(p.cfg.Symbol, price, ts)
	if err != nil {
		return nil, err
	}
	for _, t := range fills {
		p.apply(t, ts)
	}
	return fills, nil
}

func (p *Portfolio) equityAt(price float64) float64 {
	return p.cash + p.position*price
}

// appendEquity keeps equity timestamps strictly increasing: a second
// update within the same millisecond replaces the previous sample.
func (p *Portfolio) appendEquity(ts int64, equity float64) {
	if n := len(p.equity); n > 0 && p.equity[n-1].Time == ts {
		p.equity[n-1].Equity = equity
		return
	}
	p.equity = append(p.equity, model.EquityPoint{Time: ts, Equity: equity})
}

// affordable is the largest buy quantity acceptance-time checks will
// admit, accounting for slippage and commission with exact arithmetic.
func (p *Portfolio) affordable(price float64) float64 {
	if price <= 0 {
		return 0
	}
	unit := decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(p.cfg.Slippage))).
		Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(p.cfg.Commission)))
	if unit.IsZero() {
		return 0
	}
	qty, _ := decimal.NewFromFloat(p.cash).DivRound(unit, 18).Truncate(9).Float64()
	return qty
}

func mulPct(price, factor float64) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(factor)).Float64()
	return f
}
