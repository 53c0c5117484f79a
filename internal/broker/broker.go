// Package broker defines the execution capability the portfolio delegates
// to, and a simulated implementation that matches pending orders against
// incoming prices. A live implementation would forward to a real exchange.
package broker

import (
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/order"
)

// Broker accepts orders, matches them against price updates and reports
// fills. Implementations own every order they accept until it reaches a
// terminal status; callers only ever see copies.
type Broker interface {
	// SubmitOrder accepts a new order and returns its id. It rejects
	// non-positive quantities and unknown symbols.
	SubmitOrder(o *order.Order) (string, error)

	// CancelOrder cancels a pending or triggered order. Cancelling an
	// already-cancelled order succeeds idempotently; cancelling an
	// executed or expired order fails.
	CancelOrder(symbol, orderID string) error

	// GetOrderStatus returns the current status of an order.
	GetOrderStatus(symbol, orderID string) (enum.OrderStatus, error)

	// GetOrder returns a copy of an order.
	GetOrder(symbol, orderID string) (order.Order, error)

	// GetOpenOrders returns copies of all non-terminal orders for a
	// symbol, or for every symbol when symbol is empty.
	GetOpenOrders(symbol string) []order.Order

	// GetTradeHistory returns up to limit most recent trades for a
	// symbol, or for every symbol when symbol is empty. limit <= 0
	// means no limit.
	GetTradeHistory(symbol string, limit int) []model.Trade

	// UpdateMarketPrice advances the market clock for a symbol and
	// matches pending orders against the price. Resulting trades are
	// returned in order submission order. Timestamps must not move
	// backwards; out-of-order updates are a caller error.
	UpdateMarketPrice(symbol string, price float64, ts int64) ([]model.Trade, error)

	// GetCurrentPrice returns the last known price for a symbol.
	GetCurrentPrice(symbol string) (float64, bool)

	// GetBalance returns the current cash balance.
	GetBalance() float64

	// GetAccountPosition returns the signed position for a symbol,
	// positive meaning long.
	GetAccountPosition(symbol string) float64
}
