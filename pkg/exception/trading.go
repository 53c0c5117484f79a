package exception

import "errors"

// Order and broker errors
var (
	ErrInvalidOrder        = errors.New("order: invalid order")
	ErrOrderNotFound       = errors.New("order: not found")
	ErrOrderNotCancellable = errors.New("order: not cancellable")
	ErrUnknownSymbol       = errors.New("broker: unknown symbol")
	ErrInsufficientBalance = errors.New("broker: insufficient balance")
	ErrNonMonotonicUpdate  = errors.New("broker: non-monotonic price timestamp")
)

// Market data errors
var (
	ErrInvalidMarketData = errors.New("market data: invalid record")
)

// Feed errors
var (
	ErrFeedClosed = errors.New("feed: closed")
	ErrFeed       = errors.New("feed: stream failure")
)

// Configuration errors
var (
	ErrConfiguration = errors.New("config: invalid configuration")
)
