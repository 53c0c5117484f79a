package order

import (
	"github.com/google/uuid"
	"github.com/yanun0323/errors"

	"main/internal/model/enum"
	"main/pkg/exception"
)

// Order is a single instruction owned by the broker that accepted it.
// Lifecycle: Pending -> Triggered -> Executed, Pending|Triggered -> Cancelled,
// Pending -> Expired. Executed, Cancelled and Expired are terminal.
type Order struct {
	ID        string
	Symbol    string
	Type      enum.OrderType
	Side      enum.OrderSide
	Quantity  float64
	Price     float64 // trigger price for limit/stop/take-profit, zero for market
	Status    enum.OrderStatus
	CreatedAt int64

	// GoodTillTime expires a still-pending order once the market clock
	// passes it. Zero means good till cancelled.
	GoodTillTime int64

	ExecutedPrice float64
	ExecutedAt    int64
	Note          string
}

// New validates the instruction and assigns a collision-resistant id.
func New(symbol string, typ enum.OrderType, side enum.OrderSide, qty, price float64, createdAt int64) (*Order, error) {
	if symbol == "" {
		return nil, errors.Wrap(exception.ErrInvalidOrder, "empty symbol")
	}
	if !typ.IsAvailable() {
		return nil, errors.Wrap(exception.ErrInvalidOrder, "unknown order type")
	}
	if !side.IsAvailable() {
		return nil, errors.Wrap(exception.ErrInvalidOrder, "unknown order side")
	}
	if qty <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidOrder, "quantity must be > 0")
	}
	if typ.RequiresPrice() && price <= 0 {
		return nil, errors.Wrap(exception.ErrInvalidOrder, "trigger price must be > 0")
	}
	if typ == enum.OrderTypeMarket {
		price = 0
	}
	return &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Type:      typ,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Status:    enum.OrderStatusPending,
		CreatedAt: createdAt,
	}, nil
}

// ShouldTrigger evaluates the trigger rule against the current price.
// It is meaningful only while the order is pending.
func (o *Order) ShouldTrigger(price float64) bool {
	if o.Status != enum.OrderStatusPending {
		return false
	}
	switch o.Type {
	case enum.OrderTypeMarket:
		return true
	case enum.OrderTypeLimit:
		if o.Side == enum.OrderSideBuy {
			return price <= o.Price
		}
		return price >= o.Price
	case enum.OrderTypeStopLoss:
		return price <= o.Price
	case enum.OrderTypeTakeProfit:
		return price >= o.Price
	default:
		return false
	}
}

// Trigger moves a pending order to triggered. No-op for any other status.
func (o *Order) Trigger() {
	if o.Status == enum.OrderStatusPending {
		o.Status = enum.OrderStatusTriggered
	}
}

// Execute records the fill and moves the order to executed. Callers must
// trigger first for anything but market orders.
func (o *Order) Execute(price float64, ts int64) {
	o.ExecutedPrice = price
	o.ExecutedAt = ts
	o.Status = enum.OrderStatusExecuted
}

// Cancel moves a pending or triggered order to cancelled. It reports
// whether the order was cancellable.
func (o *Order) Cancel() bool {
	switch o.Status {
	case enum.OrderStatusPending, enum.OrderStatusTriggered:
		o.Status = enum.OrderStatusCancelled
		return true
	default:
		return false
	}
}

// TimedOut reports whether a pending order's good-till time has passed.
func (o *Order) TimedOut(now int64) bool {
	return o.Status == enum.OrderStatusPending && o.GoodTillTime > 0 && now > o.GoodTillTime
}

// Expire moves a pending order to expired. No-op for any other status.
func (o *Order) Expire() {
	if o.Status == enum.OrderStatusPending {
		o.Status = enum.OrderStatusExpired
	}
}
