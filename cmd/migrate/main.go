package main

import (
	"flag"
	"fmt"
	"os"

	"gorm.io/driver/clickhouse"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/navid-fn/tradereplay/configs"
	"github.com/navid-fn/tradereplay/internal/logging"
	"github.com/navid-fn/tradereplay/internal/migrations"
)

func main() {
	var store string
	flag.StringVar(&store, "store", "postgres", "Schema to migrate: postgres or clickhouse")
	flag.Parse()

	cfg, err := configs.AppLoad()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	var dialector gorm.Dialector
	switch migrations.Dialect(store) {
	case migrations.Postgres:
		dialector = postgres.Open(cfg.PostgresDSN)
	case migrations.ClickHouse:
		dialector = clickhouse.Open(cfg.ClickHouseDSN)
	default:
		logger.Fatalf("Unknown store %q", store)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Failed to get sql.DB: %v", err)
	}
	defer sqlDB.Close()

	logger.WithField("store", store).Info("Running database migrations...")
	if err := migrations.Up(sqlDB, migrations.Dialect(store)); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}
	logger.Info("Migrations completed successfully")
}
