package broker

import (
	"math"
	"testing"

	"github.com/yanun0323/errors"

	"main/internal/model/enum"
	"main/internal/order"
	"main/pkg/exception"
)

func newTestBroker(t *testing.T, cfg SimulatedConfig) *Simulated {
	t.Helper()
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"BTCUSDT"}
	}
	if cfg.InitialCash == 0 {
		cfg.InitialCash = 10_000
	}
	b, err := NewSimulated(cfg)
	if err != nil {
		t.Fatalf("new simulated broker: %v", err)
	}
	return b
}

func mustOrder(t *testing.T, typ enum.OrderType, side enum.OrderSide, qty, price float64) *order.Order {
	t.Helper()
	o, err := order.New("BTCUSDT", typ, side, qty, price, 1)
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	return o
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  SimulatedConfig
	}{
		{"no symbols", SimulatedConfig{InitialCash: 1}},
		{"zero cash", SimulatedConfig{Symbols: []string{"BTCUSDT"}}},
		{"negative commission", SimulatedConfig{Symbols: []string{"BTCUSDT"}, InitialCash: 1, Commission: -0.1}},
		{"negative slippage", SimulatedConfig{Symbols: []string{"BTCUSDT"}, InitialCash: 1, Slippage: -0.1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewSimulated(c.cfg); !errors.Is(err, exception.ErrConfiguration) {
				t.Fatalf("want ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestMarketOrderFillsOnNextTick(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})
	o := mustOrder(t, enum.OrderTypeMarket, enum.OrderSideBuy, 2, 0)
	id, err := b.SubmitOrder(o)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	fills, err := b.UpdateMarketPrice("BTCUSDT", 100, 10)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("want 1 fill, got %d", len(fills))
	}
	f := fills[0]
	if f.OrderID != id || f.Price != 100 || f.Quantity != 2 || f.Value != 200 {
		t.Fatalf("fill mismatch: %+v", f)
	}
	if got := b.GetBalance(); got != 10_000-200 {
		t.Fatalf("cash = %f, want %f", got, 10_000-200.0)
	}
	if got := b.GetAccountPosition("BTCUSDT"); got != 2 {
		t.Fatalf("position = %f, want 2", got)
	}
	status, err := b.GetOrderStatus("BTCUSDT", id)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status != enum.OrderStatusExecuted {
		t.Fatalf("status = %s, want executed", status)
	}
}

func TestLimitBuyNeverFillsAboveLimit(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})
	o := mustOrder(t, enum.OrderTypeLimit, enum.OrderSideBuy, 1, 100)
	if _, err := b.SubmitOrder(o); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for i, price := range []float64{110, 105, 100.5} {
		fills, err := b.UpdateMarketPrice("BTCUSDT", price, int64(10+i))
		if err != nil {
			t.Fatalf("update price: %v", err)
		}
		if len(fills) != 0 {
			t.Fatalf("limit buy filled at %f above its limit", price)
		}
	}

	fills, err := b.UpdateMarketPrice("BTCUSDT", 99, 20)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 1 || fills[0].Price > 100 {
		t.Fatalf("limit buy must fill at or below 100, fills: %+v", fills)
	}
}

func TestLimitSellNeverFillsBelowLimit(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})
	o := mustOrder(t, enum.OrderTypeLimit, enum.OrderSideSell, 1, 100)
	if _, err := b.SubmitOrder(o); err != nil {
		t.Fatalf("submit: %v", err)
	}

	fills, err := b.UpdateMarketPrice("BTCUSDT", 95, 10)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 0 {
		t.Fatal("limit sell filled below its limit")
	}

	fills, err = b.UpdateMarketPrice("BTCUSDT", 101, 11)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 1 || fills[0].Price < 100 {
		t.Fatalf("limit sell must fill at or above 100, fills: %+v", fills)
	}
}

func TestStopLossTriggersOnce(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})
	if _, err := b.UpdateMarketPrice("BTCUSDT", 100, 1); err != nil {
		t.Fatalf("seed price: %v", err)
	}
	o := mustOrder(t, enum.OrderTypeStopLoss, enum.OrderSideSell, 1, 95)
	id, err := b.SubmitOrder(o)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	fills, err := b.UpdateMarketPrice("BTCUSDT", 94, 2)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 1 || fills[0].OrderID != id {
		t.Fatalf("stop must fire on first breach, fills: %+v", fills)
	}

	fills, err = b.UpdateMarketPrice("BTCUSDT", 90, 3)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 0 {
		t.Fatal("stop fired twice")
	}
}

func TestCancelLifecycles(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})

	open := mustOrder(t, enum.OrderTypeLimit, enum.OrderSideBuy, 1, 90)
	openID, err := b.SubmitOrder(open)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := b.CancelOrder("BTCUSDT", openID); err != nil {
		t.Fatalf("cancel open order: %v", err)
	}
	// Idempotent second cancel.
	if err := b.CancelOrder("BTCUSDT", openID); err != nil {
		t.Fatalf("second cancel must be a no-op, got %v", err)
	}
	fills, err := b.UpdateMarketPrice("BTCUSDT", 80, 5)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 0 {
		t.Fatal("cancelled order produced a trade")
	}

	filled := mustOrder(t, enum.OrderTypeMarket, enum.OrderSideBuy, 1, 0)
	filledID, err := b.SubmitOrder(filled)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := b.UpdateMarketPrice("BTCUSDT", 80, 6); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if err := b.CancelOrder("BTCUSDT", filledID); !errors.Is(err, exception.ErrOrderNotCancellable) {
		t.Fatalf("cancel of executed order: want ErrOrderNotCancellable, got %v", err)
	}

	if err := b.CancelOrder("BTCUSDT", "missing"); !errors.Is(err, exception.ErrOrderNotFound) {
		t.Fatalf("cancel of unknown order: want ErrOrderNotFound, got %v", err)
	}
}

func TestSubmitRejections(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{InitialCash: 100})

	if _, err := b.SubmitOrder(nil); !errors.Is(err, exception.ErrInvalidOrder) {
		t.Fatalf("nil order: want ErrInvalidOrder, got %v", err)
	}

	unknown, err := order.New("ETHUSDT", enum.OrderTypeMarket, enum.OrderSideBuy, 1, 0, 1)
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	if _, err := b.SubmitOrder(unknown); !errors.Is(err, exception.ErrUnknownSymbol) {
		t.Fatalf("unknown symbol: want ErrUnknownSymbol, got %v", err)
	}

	// Limit buy beyond the account's cash is refused at acceptance.
	rich := mustOrder(t, enum.OrderTypeLimit, enum.OrderSideBuy, 10, 50)
	if _, err := b.SubmitOrder(rich); !errors.Is(err, exception.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
}

func TestInsufficientBalanceForMarketBuyUsesLastPrice(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{InitialCash: 100})
	if _, err := b.UpdateMarketPrice("BTCUSDT", 60, 1); err != nil {
		t.Fatalf("seed price: %v", err)
	}
	o := mustOrder(t, enum.OrderTypeMarket, enum.OrderSideBuy, 2, 0)
	if _, err := b.SubmitOrder(o); !errors.Is(err, exception.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
}

func TestCommissionExact(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{Commission: 0.001})
	o := mustOrder(t, enum.OrderTypeMarket, enum.OrderSideBuy, 10, 0)
	if _, err := b.SubmitOrder(o); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fills, err := b.UpdateMarketPrice("BTCUSDT", 100, 1)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 1 {
		t.Fatalf("want 1 fill, got %d", len(fills))
	}
	if fills[0].Fee != 1.0 {
		t.Fatalf("fee = %v, want exactly 1.0", fills[0].Fee)
	}
	if got := b.GetBalance(); got != 10_000-1000-1 {
		t.Fatalf("cash = %v, want %v", got, 10_000-1000-1.0)
	}
}

func TestSlippageWorksAgainstTrader(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{Slippage: 0.01})

	buy := mustOrder(t, enum.OrderTypeMarket, enum.OrderSideBuy, 1, 0)
	if _, err := b.SubmitOrder(buy); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fills, err := b.UpdateMarketPrice("BTCUSDT", 100, 1)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if fills[0].Price != 101 {
		t.Fatalf("buy fill = %v, want 101", fills[0].Price)
	}

	sell := mustOrder(t, enum.OrderTypeMarket, enum.OrderSideSell, 1, 0)
	if _, err := b.SubmitOrder(sell); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fills, err = b.UpdateMarketPrice("BTCUSDT", 100, 2)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if fills[0].Price != 99 {
		t.Fatalf("sell fill = %v, want 99", fills[0].Price)
	}
}

func TestTieBreakSubmissionOrder(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})
	a := mustOrder(t, enum.OrderTypeLimit, enum.OrderSideBuy, 1, 100)
	z := mustOrder(t, enum.OrderTypeLimit, enum.OrderSideBuy, 1, 100)
	aID, err := b.SubmitOrder(a)
	if err != nil {
		t.Fatalf("submit a: %v", err)
	}
	zID, err := b.SubmitOrder(z)
	if err != nil {
		t.Fatalf("submit z: %v", err)
	}

	fills, err := b.UpdateMarketPrice("BTCUSDT", 100, 1)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("want 2 fills, got %d", len(fills))
	}
	if fills[0].OrderID != aID || fills[1].OrderID != zID {
		t.Fatalf("fills out of submission order: %s then %s", fills[0].OrderID, fills[1].OrderID)
	}
}

func TestGoodTillTimeExpiresBeforeMatching(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})
	o := mustOrder(t, enum.OrderTypeLimit, enum.OrderSideBuy, 1, 100)
	o.GoodTillTime = 5
	id, err := b.SubmitOrder(o)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The tick past the deadline would otherwise match; expiry wins.
	fills, err := b.UpdateMarketPrice("BTCUSDT", 90, 6)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(fills) != 0 {
		t.Fatal("expired order matched")
	}
	status, err := b.GetOrderStatus("BTCUSDT", id)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status != enum.OrderStatusExpired {
		t.Fatalf("status = %s, want expired", status)
	}
	if got := len(b.GetOpenOrders("BTCUSDT")); got != 0 {
		t.Fatalf("open orders = %d, want 0", got)
	}
}

func TestUpdateMarketPriceRejections(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})

	if _, err := b.UpdateMarketPrice("ETHUSDT", 100, 1); !errors.Is(err, exception.ErrUnknownSymbol) {
		t.Fatalf("unknown symbol: want ErrUnknownSymbol, got %v", err)
	}
	if _, err := b.UpdateMarketPrice("BTCUSDT", 0, 1); !errors.Is(err, exception.ErrInvalidMarketData) {
		t.Fatalf("zero price: want ErrInvalidMarketData, got %v", err)
	}
	if _, err := b.UpdateMarketPrice("BTCUSDT", 100, 10); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if _, err := b.UpdateMarketPrice("BTCUSDT", 100, 9); !errors.Is(err, exception.ErrNonMonotonicUpdate) {
		t.Fatalf("stale timestamp: want ErrNonMonotonicUpdate, got %v", err)
	}
	// Equal timestamps are fine, two events can share a bar close.
	if _, err := b.UpdateMarketPrice("BTCUSDT", 101, 10); err != nil {
		t.Fatalf("equal timestamp must be accepted: %v", err)
	}
}

// Cash plus position value must always equal initial cash plus realized pnl
// minus fees, for any fill sequence.
func TestAccountingIdentity(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{Commission: 0.001, Slippage: 0.002})

	if _, err := b.UpdateMarketPrice("BTCUSDT", 100, 1); err != nil {
		t.Fatalf("seed price: %v", err)
	}
	for i, p := range []float64{103, 98, 105, 101} {
		side := enum.OrderSideBuy
		if i%2 == 1 {
			side = enum.OrderSideSell
		}
		o := mustOrder(t, enum.OrderTypeMarket, side, 1, 0)
		if _, err := b.SubmitOrder(o); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if _, err := b.UpdateMarketPrice("BTCUSDT", p, int64(i+2)); err != nil {
			t.Fatalf("update price %d: %v", i, err)
		}
	}

	var cashFlow float64
	for _, tr := range b.GetTradeHistory("BTCUSDT", 0) {
		if tr.Side == enum.OrderSideBuy {
			cashFlow -= tr.Value + tr.Fee
		} else {
			cashFlow += tr.Value - tr.Fee
		}
	}
	if diff := math.Abs(b.GetBalance() - (10_000 + cashFlow)); diff > 1e-9 {
		t.Fatalf("ledger mismatch: cash %v, expected %v", b.GetBalance(), 10_000+cashFlow)
	}
}

func TestGetTradeHistoryLimit(t *testing.T) {
	b := newTestBroker(t, SimulatedConfig{})
	for i := 0; i < 3; i++ {
		o := mustOrder(t, enum.OrderTypeMarket, enum.OrderSideBuy, 1, 0)
		if _, err := b.SubmitOrder(o); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if _, err := b.UpdateMarketPrice("BTCUSDT", 100+float64(i), int64(i+1)); err != nil {
			t.Fatalf("update price: %v", err)
		}
	}
	got := b.GetTradeHistory("BTCUSDT", 2)
	if len(got) != 2 {
		t.Fatalf("want 2 trades, got %d", len(got))
	}
	if got[0].Price != 101 || got[1].Price != 102 {
		t.Fatalf("limit must keep the most recent trades oldest first: %+v", got)
	}
}
