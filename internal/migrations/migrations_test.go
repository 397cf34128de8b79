package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedScripts(t *testing.T) {
	for _, dir := range []Dialect{Postgres, ClickHouse} {
		entries, err := fs.ReadDir(files, string(dir))
		require.NoError(t, err)
		require.NotEmpty(t, entries, dir)

		for _, e := range entries {
			body, err := fs.ReadFile(files, string(dir)+"/"+e.Name())
			require.NoError(t, err)
			assert.Contains(t, string(body), "-- +goose Up", e.Name())
			assert.Contains(t, string(body), "-- +goose Down", e.Name())
		}
	}
}

func TestClickHouseBarsAreReplacing(t *testing.T) {
	body, err := fs.ReadFile(files, "clickhouse/00001_create_bars.sql")
	require.NoError(t, err)
	ddl := string(body)
	assert.True(t, strings.Contains(ddl, "ReplacingMergeTree(version)"))
	assert.Contains(t, ddl, "version     UInt64")
	// a partitioned table would split one insert into several parts
	assert.NotContains(t, ddl, "PARTITION BY")
}

func TestUpRejectsUnknownDialect(t *testing.T) {
	err := Up(nil, "sqlite")
	assert.ErrorContains(t, err, "unsupported")
}
