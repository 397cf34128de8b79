package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/navid-fn/tradereplay/internal/app"
	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/warmup"
)

func main() {
	var (
		from, to, timeframes string
		force                bool
		workers              int
	)
	flag.StringVar(&from, "from", "", "First date to warm, YYYY-MM-DD (required)")
	flag.StringVar(&to, "to", "", "Last date to warm, YYYY-MM-DD (required)")
	flag.StringVar(&timeframes, "timeframes", "", "Comma separated timeframes (default: the replay timeframes)")
	flag.BoolVar(&force, "force", false, "Refetch from the provider even when bars are cached")
	flag.IntVar(&workers, "workers", 2, "Dates fetched concurrently")
	flag.Parse()

	if from == "" || to == "" {
		fmt.Fprintf(os.Stderr, "Error: -from and -to are required\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -from 2024-11-01 -to 2024-11-30 [-timeframes 4h,1h,3m] [-force]\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := app.ProvideConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := app.ProvideLogger(cfg)

	start, err := calendar.ParseDate(from)
	if err != nil {
		logger.Fatalf("Invalid -from: %v", err)
	}
	end, err := calendar.ParseDate(to)
	if err != nil {
		logger.Fatalf("Invalid -to: %v", err)
	}
	tfs := cfg.Trading.ReplayTimeframes
	if timeframes != "" {
		if tfs, err = models.ParseTimeframes(timeframes); err != nil {
			logger.Fatalf("Invalid -timeframes: %v", err)
		}
	}

	db, closeDB, err := app.ProvideDB(cfg, logger)
	if err != nil {
		logger.Fatalf("Database: %v", err)
	}
	defer closeDB()
	store, closeStore, err := app.ProvideBarStore(cfg, db, logger)
	if err != nil {
		logger.Fatalf("Bar store: %v", err)
	}
	defer closeStore()

	f, err := app.ProvideFetcher(cfg, store, logger)
	if err != nil {
		logger.Fatalf("Fetcher: %v", err)
	}
	cal, err := app.ProvideCalendar(cfg, logger)
	if err != nil {
		logger.Fatalf("Calendar: %v", err)
	}
	preparer := app.ProvidePreparer(cfg, f, cal, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := warmup.New(f, cal, preparer, warmup.Config{Timeframes: tfs, Force: force, Workers: workers}, logger)
	sum, err := w.Run(ctx, start, end)

	logger.Infof("Warmed %d dates (%d with errors)", sum.Dates, sum.Failed)
	for status, n := range sum.ByStatus {
		logger.Infof("  %s: %d", status, n)
	}
	if err != nil {
		logger.WithError(err).Error("Warm up finished with errors")
		os.Exit(1)
	}
}
