package broker

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/order"
	"main/pkg/exception"
)

var _ Broker = (*Simulated)(nil)

// SimulatedConfig controls the virtual brokerage account.
type SimulatedConfig struct {
	Symbols     []string
	InitialCash float64
	// Commission is the fee fraction of trade value deducted at execution.
	Commission float64
	// Slippage widens the effective fill price against the trader by this
	// fraction of price. Both cost knobs are deterministic.
	Slippage float64
}

// Validate checks if the configuration is usable.
func (c SimulatedConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.Wrap(exception.ErrConfiguration, "simulated broker needs at least one symbol")
	}
	if c.InitialCash <= 0 {
		return errors.Wrap(exception.ErrConfiguration, "initial cash must be > 0")
	}
	if c.Commission < 0 {
		return errors.Wrap(exception.ErrConfiguration, "commission must be >= 0")
	}
	if c.Slippage < 0 {
		return errors.Wrap(exception.ErrConfiguration, "slippage must be >= 0")
	}
	return nil
}

// Simulated matches accepted orders against price updates and keeps the
// resulting account state. It assumes exclusive single-threaded ownership
// by one engine run, so there is no locking inside.
type Simulated struct {
	cfg     SimulatedConfig
	symbols map[string]struct{}

	orders  map[string]*order.Order
	pending map[string][]*order.Order // per symbol, submission order

	trades    []model.Trade
	lastPrice map[string]float64
	lastTime  map[string]int64

	cash      float64
	positions map[string]float64
}

// NewSimulated creates a simulated broker with a fresh account.
func NewSimulated(cfg SimulatedConfig) (*Simulated, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}
	return &Simulated{
		cfg:       cfg,
		symbols:   symbols,
		orders:    make(map[string]*order.Order),
		pending:   make(map[string][]*order.Order),
		lastPrice: make(map[string]float64),
		lastTime:  make(map[string]int64),
		cash:      cfg.InitialCash,
		positions: make(map[string]float64),
	}, nil
}

// SubmitOrder accepts an order into the symbol's pending queue. Cash
// coverage for buys is enforced here, at acceptance time, never
// retroactively.
func (b *Simulated) SubmitOrder(o *order.Order) (string, error) {
	if o == nil {
		return "", errors.Wrap(exception.ErrInvalidOrder, "nil order")
	}
	if o.Quantity <= 0 {
		return "", errors.Wrap(exception.ErrInvalidOrder, "quantity must be > 0")
	}
	if o.Status != enum.OrderStatusPending {
		return "", errors.Wrap(exception.ErrInvalidOrder, "order is not pending")
	}
	if _, ok := b.symbols[o.Symbol]; !ok {
		return "", errors.Wrap(exception.ErrUnknownSymbol, o.Symbol)
	}
	if _, ok := b.orders[o.ID]; ok {
		return "", errors.Wrap(exception.ErrInvalidOrder, "duplicate order id")
	}
	if o.Side == enum.OrderSideBuy {
		ref := o.Price
		if o.Type == enum.OrderTypeMarket {
			ref = b.lastPrice[o.Symbol]
		}
		if ref > 0 {
			cost := b.notional(b.fillPrice(ref, o.Side), o.Quantity)
			cost += b.fee(b.fillPrice(ref, o.Side), o.Quantity)
			if cost > b.cash {
				return "", errors.Wrap(exception.ErrInsufficientBalance, o.Symbol)
			}
		}
	}
	b.orders[o.ID] = o
	b.pending[o.Symbol] = append(b.pending[o.Symbol], o)
	return o.ID, nil
}

// CancelOrder cancels an open order. A repeated cancel of an already
// cancelled order is a no-op; terminal executed/expired orders report an
// error.
func (b *Simulated) CancelOrder(symbol, orderID string) error {
	o, err := b.lookup(symbol, orderID)
	if err != nil {
		return err
	}
	if o.Status == enum.OrderStatusCancelled {
		return nil
	}
	if !o.Cancel() {
		return errors.Wrap(exception.ErrOrderNotCancellable, o.Status.String())
	}
	b.removePending(symbol, orderID)
	return nil
}

// GetOrderStatus returns the current status of an order.
func (b *Simulated) GetOrderStatus(symbol, orderID string) (enum.OrderStatus, error) {
	o, err := b.lookup(symbol, orderID)
	if err != nil {
		return 0, err
	}
	return o.Status, nil
}

// GetOrder returns a copy of an order.
func (b *Simulated) GetOrder(symbol, orderID string) (order.Order, error) {
	o, err := b.lookup(symbol, orderID)
	if err != nil {
		return order.Order{}, err
	}
	return *o, nil
}

// GetOpenOrders returns copies of non-terminal orders in submission order.
func (b *Simulated) GetOpenOrders(symbol string) []order.Order {
	var out []order.Order
	if symbol != "" {
		for _, o := range b.pending[symbol] {
			out = append(out, *o)
		}
		return out
	}
	for _, s := range b.cfg.Symbols {
		for _, o := range b.pending[s] {
			out = append(out, *o)
		}
	}
	return out
}

// GetTradeHistory returns the most recent trades, oldest first.
func (b *Simulated) GetTradeHistory(symbol string, limit int) []model.Trade {
	var out []model.Trade
	for _, t := range b.trades {
		if symbol == "" || t.Symbol == symbol {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// UpdateMarketPrice is the matching core. It expires overdue orders, then
// scans the symbol's pending queue in submission order, triggering and
// filling instantly at the tick price. No partial fills, no price
// improvement.
func (b *Simulated) UpdateMarketPrice(symbol string, price float64, ts int64) ([]model.Trade, error) {
	if _, ok := b.symbols[symbol]; !ok {
		return nil, errors.Wrap(exception.ErrUnknownSymbol, symbol)
	}
	if price <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidMarketData, "non-positive price")
	}
	if last := b.lastTime[symbol]; ts < last {
		return nil, errors.Wrap(exception.ErrNonMonotonicUpdate, symbol)
	}
	b.lastPrice[symbol] = price
	b.lastTime[symbol] = ts

	queue := b.pending[symbol]
	remaining := queue[:0]
	var fills []model.Trade
	for _, o := range queue {
		if o.TimedOut(ts) {
			o.Expire()
			continue
		}
		if !o.ShouldTrigger(price) {
			remaining = append(remaining, o)
			continue
		}
		o.Trigger()
		fills = append(fills, b.execute(o, price, ts))
	}
	b.pending[symbol] = remaining
	return fills, nil
}

// GetCurrentPrice returns the last price set by UpdateMarketPrice.
func (b *Simulated) GetCurrentPrice(symbol string) (float64, bool) {
	p, ok := b.lastPrice[symbol]
	return p, ok
}

// GetBalance returns the current cash balance.
func (b *Simulated) GetBalance() float64 {
	return b.cash
}

// GetAccountPosition returns the signed position for a symbol.
func (b *Simulated) GetAccountPosition(symbol string) float64 {
	return b.positions[symbol]
}

func (b *Simulated) execute(o *order.Order, tick float64, ts int64) model.Trade {
	price := b.fillPrice(tick, o.Side)
	value := b.notional(price, o.Quantity)
	fee := b.fee(price, o.Quantity)
	o.Execute(price, ts)

	switch o.Side {
	case enum.OrderSideBuy:
		b.cash -= value + fee
		b.positions[o.Symbol] += o.Quantity
	case enum.OrderSideSell:
		b.cash += value - fee
		b.positions[o.Symbol] -= o.Quantity
	}

	return model.Trade{
		OrderID:  o.ID,
		Symbol:   o.Symbol,
		Time:     ts,
		Side:     o.Side,
		Price:    price,
		Quantity: o.Quantity,
		Value:    value,
		Fee:      fee,
		Note:     o.Note,
	}
}

// fillPrice applies slippage against the trader. Exact decimal arithmetic
// keeps commission and slippage auditable down to the cent.
func (b *Simulated) fillPrice(tick float64, side enum.OrderSide) float64 {
	if b.cfg.Slippage == 0 {
		return tick
	}
	p := decimal.NewFromFloat(tick)
	s := decimal.NewFromFloat(b.cfg.Slippage)
	if side == enum.OrderSideBuy {
		p = p.Mul(decimal.NewFromInt(1).Add(s))
	} else {
		p = p.Mul(decimal.NewFromInt(1).Sub(s))
	}
	f, _ := p.Float64()
	return f
}

func (b *Simulated) notional(price, qty float64) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(qty)).Float64()
	return f
}

func (b *Simulated) fee(price, qty float64) float64 {
	if b.cfg.Commission == 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(price).
		Mul(decimal.NewFromFloat(qty)).
		Mul(decimal.NewFromFloat(b.cfg.Commission)).
		Float64()
	return f
}

func (b *Simulated) lookup(symbol, orderID string) (*order.Order, error) {
	o, ok := b.orders[orderID]
	if !ok {
		return nil, errors.Wrap(exception.ErrOrderNotFound, orderID)
	}
	if symbol != "" && o.Symbol != symbol {
		return nil, errors.Wrap(exception.ErrOrderNotFound, orderID)
	}
	return o, nil
}

func (b *Simulated) removePending(symbol, orderID string) {
	queue := b.pending[symbol]
	for i, o := range queue {
		if o.ID == orderID {
			b.pending[symbol] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}
