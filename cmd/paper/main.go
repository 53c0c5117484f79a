package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/analytics"
	"main/internal/broker"
	"main/internal/bus"
	"main/internal/engine"
	"main/internal/feed"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/portfolio"
	"main/internal/recorder"
	"main/internal/store"
	"main/pkg/conn"
)

const defaultQueueSize = 4096

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	journalDir := flag.String("journal-dir", "testdata/journal", "Run journal directory (empty=disable)")
	queueSize := flag.Int("queue-size", defaultQueueSize, "Live event queue capacity")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "paper-trader",
			ServerAddress:   *pyroscopeAddr,
			Logger:          emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
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
		journal, err = recorder.NewJournal(recorder.JournalConfig{
			Dir:           *journalDir,
			FilePrefix:    "paper",
			SyncEveryLine: true,
		})
		if err != nil {
			log.Fatalf("journal init failed: %v", err)
		}
		defer journal.Close()
		logs.Infof("journaling run to %s", journal.Path())
	}

	queue := bus.NewQueue(*queueSize)
	pub := feed.NewBinancePub(ctx)
	if err := pub.StartWebsocket(ctx); err != nil {
		log.Fatalf("websocket start failed: %v", err)
	}
	defer pub.Close()
	if err := pub.SubscribeKline(ctx, loaded.Symbol, loaded.Interval); err != nil {
		log.Fatalf("subscribe kline failed: %v", err)
	}

	unsubscribe := pub.ObserveKline(ctx, func(ev model.MarketEvent) {
		if ev.Symbol != loaded.Symbol {
			return
		}
		if err := queue.Publish(ctx, ev); err != nil {
			logs.Errorf("publish market event, err: %+v", err)
		}
	})
	defer unsubscribe()

	go func() {
		<-ctx.Done()
		queue.Close()
	}()

	metrics := obs.NewMetrics()
	eng, err := engine.New(engine.Config{
		Mode:      engine.ModeLive,
		Feed:      feed.NewQueueFeed(queue),
		Strategy:  loaded.Strategy,
		Portfolio: book,
		Metrics:   metrics,
		Journal:   journal,
	})
	if err != nil {
		log.Fatalf("engine init failed: %v", err)
	}

	logs.Infof("paper trading %s %s, initial cash %.2f", loaded.Symbol, loaded.Interval, loaded.Portfolio.InitialCash)
	startedAt := time.Now().UTC().UnixMilli()
	runErr := eng.Run(ctx)
	finishedAt := time.Now().UTC().UnixMilli()

	report := analytics.Summarize(book.Equity(), book.Trades())
	snap := metrics.Snapshot()
	logs.Infof("session %s: events=%d invalid=%d trades=%d denied=%d equity %.2f -> %.2f",
		eng.State(), snap.Events, snap.InvalidEvents, snap.Trades, snap.OrdersDenied,
		report.InitialEquity, report.FinalEquity)
	if runErr != nil {
		logs.Errorf("session failed, partial results preserved, err: %+v", runErr)
	}

	if loaded.Store.Enabled {
		if err := saveRun(loaded, eng, report, book, startedAt, finishedAt); err != nil {
			log.Fatalf("save run failed: %v", err)
		}
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Resolve(ops.FileConfig{})
	}
	return ops.Load(path)
}

func saveRun(loaded ops.Loaded, eng *engine.Engine, report analytics.Report, book *portfolio.Portfolio, startedAt, finishedAt int64) error {
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
		Mode:       "paper",
		Strategy:   loaded.Strategy.Name(),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		FinalState: eng.State().String(),
		Report:     report,
		Trades:     book.Trades(),
		Equity:     book.Equity(),
	})
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
