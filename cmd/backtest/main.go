package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	"main/internal/analytics"
	"main/internal/broker"
	"main/internal/engine"
	"main/internal/feed"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/portfolio"
	"main/internal/recorder"
	"main/internal/store"
	"main/pkg/conn"
)

func main() {
	csvPath := flag.String("csv", "", "Kline CSV file: time_ms,open,high,low,close,volume")
	configPath := flag.String("config", "", "Path to JSON config")
	journalDir := flag.String("journal-dir", "", "Run journal directory (empty=disable)")
	speed := flag.Float64("speed", 0, "Replay speed (1=real-time, 0=no pacing)")
	flag.Parse()

	if *csvPath == "" {
		log.Fatalf("csv is required")
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	klines, err := feed.LoadCSV(*csvPath)
	if err != nil {
		log.Fatalf("load csv failed: %v", err)
	}
	if len(klines) == 0 {
		log.Fatalf("no klines in %s", *csvPath)
	}

	sim, err := broker.NewSimulated(loaded.Broker)
	if err != nil {
		log.Fatalf("broker init failed: %v", err)
	}
	book, err := portfolio.New(loaded.Portfolio, sim, loaded.Sizer)
	if err != nil {
		log.Fatalf("portfolio init failed: %v", err)
	}

	var journal *recorder.Journal
	if *journalDir != "" {
		journal, err = recorder.NewJournal(recorder.JournalConfig{Dir: *journalDir, FilePrefix: "backtest"})
		if err != nil {
			log.Fatalf("journal init failed: %v", err)
		}
		defer journal.Close()
	}

	metrics := obs.NewMetrics()
	eng, err := engine.New(engine.Config{
		Mode:      engine.ModeBacktest,
		Feed:      feed.NewHistory(loaded.Symbol, klines, *speed),
		Strategy:  loaded.Strategy,
		Portfolio: book,
		Metrics:   metrics,
		Journal:   journal,
	})
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}

	startedAt := time.Now().UTC().UnixMilli()
	runErr := eng.Run(context.Background())
	finishedAt := time.Now().UTC().UnixMilli()

	report := analytics.Summarize(book.Equity(), book.Trades())
	printReport(eng.State(), report, metrics.Snapshot())
	if runErr != nil {
		log.Printf("run failed, partial results above, err: %v", runErr)
	}

	if loaded.Store.Enabled {
		if err := saveRun(loaded, eng, report, book, startedAt, finishedAt, "backtest"); err != nil {
			log.Fatalf("save run failed: %v", err)
		}
	}
	if runErr != nil {
		log.Fatalf("backtest failed: %v", runErr)
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Resolve(ops.FileConfig{})
	}
	return ops.Load(path)
}

func printReport(state engine.State, report analytics.Report, snap obs.Snapshot) {
	log.Printf("state=%s events=%d invalid=%d trades=%d denied=%d",
		state, snap.Events, snap.InvalidEvents, snap.Trades, snap.OrdersDenied)
	log.Printf("equity %.2f -> %.2f return=%.4f%% maxDD=%.4f%%",
		report.InitialEquity, report.FinalEquity, report.TotalReturn*100, report.MaxDrawdown*100)
	log.Printf("roundTrips=%d winRate=%.2f%% avgWin=%.2f avgLoss=%.2f sharpe=%.4f",
		report.RoundTrips, report.WinRate*100, report.AvgWin, report.AvgLoss, report.SharpeRatio)
}

func saveRun(loaded ops.Loaded, eng *engine.Engine, report analytics.Report, book *portfolio.Portfolio, startedAt, finishedAt int64, mode string) error {
	client, err := conn.New(conn.Option{
		Host:     loaded.Store.Host,
		Port:     loaded.Store.Port,
		User:     loaded.Store.User,
		Password: loaded.Store.Password,
		Database: loaded.Store.Database,
		SSLMode:  loaded.Store.SSLMode,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := store.New(client)
	if err != nil {
		return err
	}
	return runs.SaveRun(store.RunResult{
		RunID:      uuid.NewString(),
		Symbol:     loaded.Symbol,
		Mode:       mode,
		Strategy:   loaded.Strategy.Name(),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		FinalState: eng.State().String(),
		Report:     report,
		Trades:     book.Trades(),
		Equity:     book.Equity(),
	})
}
