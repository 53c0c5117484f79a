package feed

import (
	"context"
	"testing"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/bus"
	"main/internal/model"
	"main/pkg/exception"
)

type fakeClock struct {
	slept []time.Duration
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	return nil
}

func testKlines() []model.Kline {
	return []model.Kline{
		{Time: 1000, Open: 100, High: 106, Low: 99, Close: 105, Volume: 1},
		{Time: 2000, Open: 105, High: 107, Low: 102, Close: 103, Volume: 1},
		{Time: 4000, Open: 103, High: 104, Low: 88, Close: 90, Volume: 1},
	}
}

func TestHistoryReplaysInOrderThenCloses(t *testing.T) {
	h := NewHistory("BTCUSDT", testKlines(), 0)
	ctx := context.Background()

	for i, want := range testKlines() {
		ev, err := h.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if ev.Kind != model.MarketEventKline || ev.Symbol != "BTCUSDT" || ev.Kline != want {
			t.Fatalf("event %d mismatch: %+v", i, ev)
		}
	}
	if _, err := h.Next(ctx); !errors.Is(err, exception.ErrFeedClosed) {
		t.Fatalf("drained feed: want ErrFeedClosed, got %v", err)
	}
	// The feed stays closed, it never restarts.
	if _, err := h.Next(ctx); !errors.Is(err, exception.ErrFeedClosed) {
		t.Fatalf("second drain: want ErrFeedClosed, got %v", err)
	}
}

func TestHistoryPacesByEventTime(t *testing.T) {
	clock := &fakeClock{}
	h := NewHistory("BTCUSDT", testKlines(), 2).WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.Next(ctx); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}
	// Deltas are 1000ms and 2000ms, halved by speed 2.
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(clock.slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", clock.slept, want)
	}
	for i := range want {
		if clock.slept[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, clock.slept[i], want[i])
		}
	}
}

func TestQueueFeedDeliversThenSignalsClosure(t *testing.T) {
	q := bus.NewQueue(2)
	if err := q.Publish(context.Background(), model.NewKlineEvent("BTCUSDT", testKlines()[0])); err != nil {
		t.Fatalf("publish: %v", err)
	}
	q.Close()

	f := NewQueueFeed(q)
	ev, err := f.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if ev.Kline != testKlines()[0] {
		t.Fatalf("event mismatch: %+v", ev)
	}
	if _, err := f.Next(context.Background()); !errors.Is(err, exception.ErrFeedClosed) {
		t.Fatalf("want ErrFeedClosed, got %v", err)
	}
}

func TestQueueFeedSurfacesStreamFailure(t *testing.T) {
	q := bus.NewQueue(2)
	if err := q.Publish(context.Background(), model.NewKlineEvent("BTCUSDT", testKlines()[0])); err != nil {
		t.Fatalf("publish: %v", err)
	}
	q.CloseWithError(errors.New("stream reset by peer"))

	f := NewQueueFeed(q)
	// Events accepted before the failure still come through.
	if _, err := f.Next(context.Background()); err != nil {
		t.Fatalf("next: %v", err)
	}
	_, err := f.Next(context.Background())
	if !errors.Is(err, exception.ErrFeed) {
		t.Fatalf("want ErrFeed, got %v", err)
	}
	if errors.Is(err, exception.ErrFeedClosed) {
		t.Fatalf("abnormal end must not read as a clean close: %v", err)
	}
}
