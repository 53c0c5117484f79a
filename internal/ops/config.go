// Package ops loads and resolves the run configuration consumed by the
// backtest and paper-trading binaries. Invalid configuration fails fast,
// before any event is processed.
package ops

import (
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/broker"
	"main/internal/portfolio"
	"main/internal/strategy"
	"main/pkg/exception"
)

// Sizing modes accepted in the config file.
const (
	SizingFixedFraction = "fixed_fraction"
	SizingFixedQuantity = "fixed_quantity"
	SizingRiskBased     = "risk_based"
)

// Strategy names accepted in the config file.
const (
	StrategySMACross = "sma_cross"
	StrategyBreakout = "breakout"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Symbol          string               `json:"symbol"`
	Interval        string               `json:"interval"`
	InitialCash     float64              `json:"initialCash"`
	Commission      float64              `json:"commission"`
	Slippage        float64              `json:"slippage"`
	MaxPositionSize float64              `json:"maxPositionSize"`
	MaxPositions    int                  `json:"maxPositions"`
	Risk            portfolio.RiskConfig `json:"risk"`
	Sizing          SizingConfig         `json:"sizing"`
	Strategy        StrategyConfig       `json:"strategy"`
	Store           StoreConfig          `json:"store"`
}

// SizingConfig selects one position-sizing policy.
type SizingConfig struct {
	Mode         string  `json:"mode"`
	Fraction     float64 `json:"fraction"`
	Quantity     float64 `json:"quantity"`
	RiskPerTrade float64 `json:"riskPerTrade"`
}

// StrategyConfig selects and parametrizes the strategy.
type StrategyConfig struct {
	Name        string  `json:"name"`
	FastPeriod  int     `json:"fastPeriod"`
	SlowPeriod  int     `json:"slowPeriod"`
	EnterAbove  float64 `json:"enterAbove"`
	ExitRetrace float64 `json:"exitRetrace"`
}

// StoreConfig enables persisting finished runs to PostgreSQL.
type StoreConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Symbol    string
	Interval  string
	Broker    broker.SimulatedConfig
	Portfolio portfolio.Config
	Sizer     portfolio.Sizer
	Strategy  strategy.Strategy
	Store     StoreConfig
}

// Load reads a JSON config file and resolves every component config.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrap(err, "read config file")
	}
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(exception.ErrConfiguration, err.Error())
	}
	return Resolve(cfg)
}

// Resolve validates a file config and builds the runtime components.
func Resolve(cfg FileConfig) (Loaded, error) {
	cfg = withDefaults(cfg)

	sizer, err := resolveSizer(cfg)
	if err != nil {
		return Loaded{}, err
	}
	strat, err := resolveStrategy(cfg.Strategy)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{
		Symbol:   cfg.Symbol,
		Interval: cfg.Interval,
		Broker: broker.SimulatedConfig{
			Symbols:     []string{cfg.Symbol},
			InitialCash: cfg.InitialCash,
			Commission:  cfg.Commission,
			Slippage:    cfg.Slippage,
		},
		Portfolio: portfolio.Config{
			Symbol:          cfg.Symbol,
			InitialCash:     cfg.InitialCash,
			Commission:      cfg.Commission,
			Slippage:        cfg.Slippage,
			MaxPositionSize: cfg.MaxPositionSize,
			MaxPositions:    cfg.MaxPositions,
			Risk:            cfg.Risk,
		},
		Sizer:    sizer,
		Strategy: strat,
		Store:    cfg.Store,
	}
	if err := loaded.Broker.Validate(); err != nil {
		return Loaded{}, err
	}
	if err := loaded.Portfolio.Validate(); err != nil {
		return Loaded{}, err
	}
	return loaded, nil
}

func withDefaults(cfg FileConfig) FileConfig {
	if cfg.Symbol == "" {
		cfg.Symbol = "BTCUSDT"
	}
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.InitialCash == 0 {
		cfg.InitialCash = 10_000
	}
	if cfg.Sizing.Mode == "" {
		cfg.Sizing.Mode = SizingFixedFraction
	}
	if cfg.Sizing.Mode == SizingFixedFraction && cfg.Sizing.Fraction == 0 {
		cfg.Sizing.Fraction = 0.5
	}
	if cfg.Strategy.Name == "" {
		cfg.Strategy.Name = StrategySMACross
	}
	if cfg.Strategy.Name == StrategySMACross {
		if cfg.Strategy.FastPeriod == 0 {
			cfg.Strategy.FastPeriod = 5
		}
		if cfg.Strategy.SlowPeriod == 0 {
			cfg.Strategy.SlowPeriod = 20
		}
	}
	return cfg
}

func resolveSizer(cfg FileConfig) (portfolio.Sizer, error) {
	switch strings.ToLower(cfg.Sizing.Mode) {
	case SizingFixedFraction:
		sizer, err := portfolio.NewFixedFraction(cfg.Sizing.Fraction)
		if err != nil {
			return nil, err
		}
		return sizer, nil
	case SizingFixedQuantity:
		sizer, err := portfolio.NewFixedQuantity(cfg.Sizing.Quantity)
		if err != nil {
			return nil, err
		}
		return sizer, nil
	case SizingRiskBased:
		sizer, err := portfolio.NewRiskBased(cfg.Sizing.RiskPerTrade, cfg.Risk.StopLossPct)
		if err != nil {
			return nil, err
		}
		return sizer, nil
	default:
		return nil, errors.Wrap(exception.ErrConfiguration, "unknown sizing mode: "+cfg.Sizing.Mode)
	}
}

func resolveStrategy(cfg StrategyConfig) (strategy.Strategy, error) {
	switch strings.ToLower(cfg.Name) {
	case StrategySMACross:
		strat, err := strategy.NewSMACross(cfg.FastPeriod, cfg.SlowPeriod)
		if err != nil {
			return nil, err
		}
		return strat, nil
	case StrategyBreakout:
		strat, err := strategy.NewBreakout(cfg.EnterAbove, cfg.ExitRetrace)
		if err != nil {
			return nil, err
		}
		return strat, nil
	default:
		return nil, errors.Wrap(exception.ErrConfiguration, "unknown strategy: "+cfg.Name)
	}
}
