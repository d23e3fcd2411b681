package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"crypto-dca-bot/internal/collector"
	"crypto-dca-bot/internal/logger"
	"crypto-dca-bot/internal/marketdata"
	"crypto-dca-bot/internal/sim"
	"crypto-dca-bot/internal/store"
	"crypto-dca-bot/internal/tradelog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	startDate := flag.String("start", "", "simulation start date (YYYY-MM-DD, overrides config)")
	endDate := flag.String("end", "", "simulation end date (YYYY-MM-DD, overrides config)")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	start := cfg.Simulation.StartDate
	if *startDate != "" {
		start = *startDate
	}
	end := cfg.Simulation.EndDate
	if *endDate != "" {
		end = *endDate
	}
	if start == "" || end == "" {
		fmt.Fprintln(os.Stderr, "Simulation date range missing: set simulation.start_date/end_date or -start/-end")
		os.Exit(1)
	}

	strat, err := cfg.Strategy()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid strategy configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := marketdata.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gaps, err := collector.CheckGaps(ctx, db, cfg.Symbols, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gap check failed: %v\n", err)
		os.Exit(1)
	}
	if !gaps.Complete() {
		fmt.Printf("Data gaps in range (%d days checked): %d days without sentiment",
			gaps.DaysChecked, len(gaps.MissingSentiment))
		for _, symbol := range cfg.Symbols {
			fmt.Printf(", %d days without %s price", len(gaps.MissingPrices[symbol]), symbol)
		}
		fmt.Println(" - those days will be skipped")
	}

	window, err := db.LoadRange(ctx, cfg.Symbols, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to preload range: %v\n", err)
		os.Exit(1)
	}

	runner, err := sim.NewRunner(strat, cfg.InitialFunds(), window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create runner: %v\n", err)
		os.Exit(1)
	}
	runner.AttachSinks(
		tradelog.NewStoreSink(db, runner.RunID()),
		tradelog.NewJournal(cfg.Ledger.Dir, runner.RunID()),
	)

	summary, err := runner.Run(ctx, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Simulation failed: %v\n", err)
		os.Exit(1)
	}

	printSummary(summary)

	if path, err := tradelog.WriteCSV(cfg.Ledger.Dir, runner.RunID(), runner.Ledger()); err != nil {
		fmt.Fprintf(os.Stderr, "CSV export failed: %v\n", err)
	} else if path != "" {
		fmt.Println("Ledger CSV written:", path)
	}
	_ = tradelog.CompressOlder(cfg.Ledger.Dir, cfg.Ledger.RetentionDays)
	_ = logger.Shutdown(ctx)
}

func printSummary(s *sim.Summary) {
	line := "=========================================================================================="
	fmt.Println(line)
	fmt.Println("        DCA strategy simulation summary")
	fmt.Println(line)
	fmt.Printf("Run ID:        %s\n", s.RunID)
	fmt.Printf("Range:         %s - %s\n", s.StartDate, s.EndDate)
	fmt.Printf("Initial funds: $%s\n", s.InitialFunds.StringFixed(2))
	fmt.Printf("Final cash:    $%s\n", s.FinalCash.StringFixed(2))
	for _, a := range s.Assets {
		fmt.Printf("%-4s holdings: %s", a.Symbol, a.Quantity.StringFixed(6))
		fmt.Printf("  avg cost: $%s", a.AverageCost.StringFixed(2))
		if a.Priced {
			fmt.Printf("  final price: $%s  value: $%s\n", a.FinalPrice.StringFixed(2), a.MarkValue.StringFixed(2))
		} else {
			fmt.Printf("  final price: unavailable\n")
		}
	}
	if s.Valued {
		fmt.Printf("Total value:   $%s\n", s.TotalValue.StringFixed(2))
		fmt.Printf("Return:        %s%%\n", s.ReturnPct.StringFixed(2))
	} else {
		fmt.Println("Total value:   unavailable (missing price data)")
	}
	fmt.Printf("Trades:        %d buys, %d sells\n", s.BuyCount, s.SellCount)
	fmt.Println(line)
}
