package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/navid-fn/tradereplay/internal/app"
	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/fetcher"
	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/saver"
)

func main() {
	var from, to, timeframe, format, out string
	flag.StringVar(&from, "from", "", "First date, YYYY-MM-DD (required)")
	flag.StringVar(&to, "to", "", "Last date, YYYY-MM-DD (required)")
	flag.StringVar(&timeframe, "timeframe", "3m", "Timeframe to export")
	flag.StringVar(&format, "format", "csv", "Output format: csv, json, parquet")
	flag.StringVar(&out, "out", "", "Output file (default: bars_<tf>_<from>_<to>.<ext>)")
	flag.Parse()

	if from == "" || to == "" {
		fmt.Fprintf(os.Stderr, "Error: -from and -to are required\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -from 2024-11-01 -to 2024-11-30 -timeframe 3m -format parquet\n", os.Args[0])
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
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		logger.Fatalf("Invalid -timeframe: %v", err)
	}
	s, err := saver.New(format)
	if err != nil {
		logger.Fatalf("Invalid -format: %v", err)
	}
	if out == "" {
		out = fmt.Sprintf("bars_%s_%s_%s.%s", tf, from, to, s.Extension())
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

	rangeStart, rangeEnd := fetcher.Range(start, end)
	bars, err := store.QueryRange(context.Background(), rangeStart, rangeEnd, tf)
	if err != nil {
		logger.Fatalf("Query bars: %v", err)
	}
	if len(bars) == 0 {
		logger.Warn("No cached bars in range, nothing to export")
		return
	}
	if err := s.Save(bars, out); err != nil {
		logger.Fatalf("Save: %v", err)
	}
	logger.WithField("count", len(bars)).Infof("Exported to %s", out)
}
