package enum

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// OrderType market, limit, stop loss, take profit
type OrderType uint8

const (
	_order_type_beg OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	OrderTypeStopLoss
	OrderTypeTakeProfit
	_order_type_end
)

func (t OrderType) IsAvailable() bool {
	return t > _order_type_beg && t < _order_type_end
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "market"
	case OrderTypeLimit:
		return "limit"
	case OrderTypeStopLoss:
		return "stop_loss"
	case OrderTypeTakeProfit:
		return "take_profit"
	default:
		return "unknown"
	}
}

// RequiresPrice reports whether the order type carries a trigger price.
func (t OrderType) RequiresPrice() bool {
	switch t {
	case OrderTypeLimit, OrderTypeStopLoss, OrderTypeTakeProfit:
		return true
	default:
		return false
	}
}

// OrderStatus pending, triggered, executed, cancelled, expired
type OrderStatus uint8

const (
	_order_status_beg OrderStatus = iota
	OrderStatusPending
	OrderStatusTriggered
	OrderStatusExecuted
	OrderStatusCancelled
	OrderStatusExpired
	_order_status_end
)

func (s OrderStatus) IsAvailable() bool {
	return s > _order_status_beg && s < _order_status_end
}

// IsTerminal reports whether no further transitions leave the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusExecuted, OrderStatusCancelled, OrderStatusExpired:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusTriggered:
		return "triggered"
	case OrderStatusExecuted:
		return "executed"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}
