// Package migrations embeds the goose SQL migrations for each supported store.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql clickhouse/*.sql
var files embed.FS

// Dialect names a migration set. It matches both the goose dialect and the
// directory holding its scripts.
type Dialect string

const (
	Postgres   Dialect = "postgres"
	ClickHouse Dialect = "clickhouse"
)

// Up applies every pending migration of the dialect to db.
func Up(db *sql.DB, dialect Dialect) error {
	switch dialect {
	case Postgres, ClickHouse:
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	goose.SetBaseFS(files)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("goose: set dialect: %w", err)
	}
	if err := goose.Up(db, string(dialect)); err != nil {
		return fmt.Errorf("goose: up: %w", err)
	}
	return nil
}
