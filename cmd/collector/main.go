package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crypto-dca-bot/internal/collector"
	"crypto-dca-bot/internal/logger"
	"crypto-dca-bot/internal/marketdata"
	"crypto-dca-bot/internal/store"
	"crypto-dca-bot/internal/types"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	backfill := flag.Bool("backfill", false, "backfill historical prices and sentiment before polling")
	flag.Parse()

	_ = godotenv.Load()
	must(logger.Init())

	cfg, err := store.LoadConfig(*configPath)
	must(err)
	must(cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := marketdata.Open(cfg.DatabasePath)
	must(err)
	defer db.Close()
	must(db.SeedCurrencies(ctx, cfg.CurrencyNames))

	col := collector.New(
		db,
		collector.NewBinanceSource(cfg.Collector.QuoteAsset),
		collector.NewAlternativeMeSource(cfg.Collector.SentimentURL),
		cfg.Symbols,
		cfg.Collector.MaxRetries,
		cfg.Collector.KlineLimit,
	)

	if *backfill {
		start := time.Now().UTC().AddDate(-1, 0, 0)
		if cfg.Collector.BackfillStart != "" {
			t, err := types.ParseDay(cfg.Collector.BackfillStart)
			must(err)
			start = t
		}
		logger.Info(ctx, "Backfilling historical data", "start", types.FormatDay(start))
		must(col.BackfillPrices(ctx, start))
		must(col.BackfillSentiment(ctx))
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	priceTick := time.NewTicker(time.Duration(cfg.Collector.PollSeconds) * time.Second)
	defer priceTick.Stop()
	// The index is published once a day; an hourly check with an
	// idempotent upsert is plenty.
	sentimentTick := time.NewTicker(time.Hour)
	defer sentimentTick.Stop()

	col.CollectPrices(ctx)
	col.CollectSentiment(ctx)
	logger.Info(ctx, "Collector started",
		"symbols", cfg.Symbols,
		"poll_seconds", cfg.Collector.PollSeconds,
	)

	for {
		select {
		case <-priceTick.C:
			col.CollectPrices(ctx)
		case <-sentimentTick.C:
			col.CollectSentiment(ctx)
		case <-sigc:
			logger.Info(ctx, "Shutting down collector")
			_ = logger.Shutdown(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}
