// Package store persists finished runs (summary, trades, equity curve) to
// PostgreSQL for later comparison across strategy configurations.
package store

import (
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"main/internal/analytics"
	"main/internal/model"
	"main/pkg/conn"
)

const insertBatchSize = 500

// RunRow is the per-run summary record.
type RunRow struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       string `gorm:"uniqueIndex;size:64"`
	Symbol      string `gorm:"size:32"`
	Mode        string `gorm:"size:16"`
	Strategy    string `gorm:"size:64"`
	StartedAt   int64
	FinishedAt  int64
	FinalState  string `gorm:"size:16"`
	InitialCash float64
	FinalEquity float64
	TotalReturn float64
	MaxDrawdown float64
	WinRate     float64
	SharpeRatio float64
	TradeCount  int
}

func (RunRow) TableName() string { return "runs" }

// TradeRow is one executed trade of a run.
type TradeRow struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"index;size:64"`
	OrderID  string `gorm:"size:64"`
	Symbol   string `gorm:"size:32"`
	Time     int64
	Side     string `gorm:"size:8"`
	Price    float64
	Quantity float64
	Value    float64
	Fee      float64
	Note     string
}

func (TradeRow) TableName() string { return "run_trades" }

// EquityRow is one sample of a run's equity curve.
type EquityRow struct {
	ID     uint   `gorm:"primaryKey"`
	RunID  string `gorm:"index;size:64"`
	Time   int64
	Equity float64
}

func (EquityRow) TableName() string { return "run_equity" }

// RunResult bundles everything persisted for one run.
type RunResult struct {
	RunID      string
	Symbol     string
	Mode       string
	Strategy   string
	StartedAt  int64
	FinishedAt int64
	FinalState string
	Report     analytics.Report
	Trades     []model.Trade
	Equity     []model.EquityPoint
}

// Store writes run results through a gorm connection.
type Store struct {
	db *gorm.DB
}

// New migrates the run tables and returns a store.
func New(client *conn.Client) (*Store, error) {
	db := client.DB()
	if db == nil {
		return nil, errors.New("store: nil database connection")
	}
	if err := db.AutoMigrate(&RunRow{}, &TradeRow{}, &EquityRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate run tables")
	}
	return &Store{db: db}, nil
}

// SaveRun persists a finished (or failed) run atomically.
func (s *Store) SaveRun(result RunResult) error {
	run := RunRow{
		RunID:       result.RunID,
		Symbol:      result.Symbol,
		Mode:        result.Mode,
		Strategy:    result.Strategy,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		FinalState:  result.FinalState,
		InitialCash: result.Report.InitialEquity,
		FinalEquity: result.Report.FinalEquity,
		TotalReturn: result.Report.TotalReturn,
		MaxDrawdown: result.Report.MaxDrawdown,
		WinRate:     result.Report.WinRate,
		SharpeRatio: result.Report.SharpeRatio,
		TradeCount:  result.Report.TradeCount,
	}

	trades := make([]TradeRow, 0, len(result.Trades))
	for _, t := range result.Trades {
		trades = append(trades, TradeRow{
			RunID:    result.RunID,
			OrderID:  t.OrderID,
			Symbol:   t.Symbol,
			Time:     t.Time,
			Side:     t.Side.String(),
			Price:    t.Price,
			Quantity: t.Quantity,
			Value:    t.Value,
			Fee:      t.Fee,
			Note:     t.Note,
		})
	}

	equity := make([]EquityRow, 0, len(result.Equity))
	for _, p := range result.Equity {
		equity = append(equity, EquityRow{
			RunID:  result.RunID,
			Time:   p.Time,
			Equity: p.Equity,
		})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return errors.Wrap(err, "insert run summary")
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(trades, insertBatchSize).Error; err != nil {
				return errors.Wrap(err, "insert run trades")
			}
		}
		if len(equity) > 0 {
			if err := tx.CreateInBatches(equity, insertBatchSize).Error; err != nil {
				return errors.Wrap(err, "insert run equity")
			}
		}
		return nil
	})
}

// LoadTrades returns a run's trades ordered by execution time.
func (s *Store) LoadTrades(runID string) ([]TradeRow, error) {
	var rows []TradeRow
	if err := s.db.Where("run_id = ?", runID).Order("time asc").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load run trades")
	}
	return rows, nil
}
