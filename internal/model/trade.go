package model

import "main/internal/model/enum"

// Trade is the immutable result of an order execution.
type Trade struct {
	OrderID  string         `json:"orderId"`
	Symbol   string         `json:"symbol"`
	Time     int64          `json:"time"`
	Side     enum.OrderSide `json:"side"`
	Price    float64        `json:"price"`
	Quantity float64        `json:"quantity"`
	Value    float64        `json:"value"`
	Fee      float64        `json:"fee,omitempty"`
	Note     string         `json:"note,omitempty"`
}

// EquityPoint is one sample of the account equity curve.
type EquityPoint struct {
	Time   int64   `json:"time"`
	Equity float64 `json:"equity"`
}
