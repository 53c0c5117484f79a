// Package engine wires a feed, a strategy and a portfolio into the
// event-driven simulation loop shared by backtest and live paper trading.
package engine

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/portfolio"
	"main/internal/recorder"
	"main/internal/strategy"
	"main/pkg/exception"
)

// State tracks the engine lifecycle. Finished and Failed are terminal.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mode selects the temporal regime.
type Mode uint8

const (
	// ModeBacktest drains a finite, trusted sequence; invalid data
	// aborts the run.
	ModeBacktest Mode = iota
	// ModeLive drains an unbounded stream; invalid records are logged
	// and skipped so a transient glitch never kills the session.
	ModeLive
)

// Config wires the engine's collaborators. Metrics and Journal are
// optional.
type Config struct {
	Mode      Mode
	Feed      feed.Feed
	Strategy  strategy.Strategy
	Portfolio *portfolio.Portfolio
	Metrics   *obs.Metrics
	Journal   *recorder.Journal
}

// Engine is the single consumer of its feed; one engine owns one
// portfolio/broker pair per run and never runs twice.
type Engine struct {
	cfg   Config
	state State
	err   error
}

// New validates collaborators and creates an idle engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Feed == nil {
		return nil, errors.Wrap(exception.ErrConfiguration, "nil feed")
	}
	if cfg.Strategy == nil {
		return nil, errors.Wrap(exception.ErrConfiguration, "nil strategy")
	}
	if cfg.Portfolio == nil {
		return nil, errors.Wrap(exception.ErrConfiguration, "nil portfolio")
	}
	return &Engine{cfg: cfg, state: StateIdle}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// Err returns the failure cause once the engine is in StateFailed.
func (e *Engine) Err() error { return e.err }

// Run drains the feed until it closes, the context is done, or an
// unrecoverable error occurs. Trades and equity collected before a
// failure stay available through the portfolio.
func (e *Engine) Run(ctx context.Context) error {
	if e.state != StateIdle {
		return errors.Wrap(exception.ErrConfiguration, "engine already ran")
	}
	e.state = StateRunning

	for {
		ev, err := e.cfg.Feed.Next(ctx)
		if err != nil {
			if errors.Is(err, exception.ErrFeedClosed) {
				e.state = StateFinished
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.state = StateFinished
				return nil
			}
			return e.fail(errors.Wrap(err, "feed"))
		}
		if err := e.step(ev); err != nil {
			return e.fail(err)
		}
	}
}

func (e *Engine) step(ev model.MarketEvent) error {
	e.cfg.Metrics.ObserveEvent()
	if ev.Kind != model.MarketEventKline {
		return nil
	}
	k := ev.Kline

	if err := k.Validate(); err != nil {
		e.cfg.Metrics.ObserveInvalidEvent()
		if e.cfg.Mode == ModeBacktest {
			return err
		}
		logs.Warnf("skip invalid market data, err: %+v", err)
		return nil
	}

	if sig := e.cfg.Strategy.OnMarketEvent(ev); sig != nil {
		e.cfg.Metrics.ObserveSignal(sig.Signal)
		if submitted, err := e.cfg.Portfolio.OnSignal(*sig); err != nil {
			if !recoverable(err) {
				return err
			}
			e.cfg.Metrics.ObserveOrderDenied()
			logs.Warnf("skip %s signal at %.8f, err: %+v", sig.Signal, sig.Price, err)
		} else if submitted {
			e.cfg.Metrics.ObserveOrderOpened()
		}
	}

	trades, err := e.cfg.Portfolio.OnPrice(k.Close, k.Time)
	if err != nil {
		if e.cfg.Mode == ModeBacktest {
			return err
		}
		e.cfg.Metrics.ObserveInvalidEvent()
		logs.Warnf("skip price update, err: %+v", err)
		return nil
	}
	e.cfg.Metrics.ObserveTrades(len(trades))
	return e.journal(trades)
}

func (e *Engine) journal(trades []model.Trade) error {
	j := e.cfg.Journal
	if j == nil {
		return nil
	}
	for _, t := range trades {
		if err := j.AppendTrade(t); err != nil {
			return err
		}
	}
	eq := e.cfg.Portfolio.Equity()
	if len(eq) > 0 {
		if err := j.AppendEquity(eq[len(eq)-1]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fail(err error) error {
	e.state = StateFailed
	e.err = err
	return err
}

func recoverable(err error) bool {
	return errors.Is(err, exception.ErrInvalidOrder) ||
		errors.Is(err, exception.ErrInsufficientBalance)
}
