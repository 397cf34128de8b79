package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/navid-fn/tradereplay/internal/models"
)

// bars table with sqlite column types; the postgres migration uses timestamptz.
const sqliteBarsDDL = `
CREATE TABLE bars (
    timestamp   DATETIME NOT NULL,
    timeframe   TEXT     NOT NULL,
    open        REAL     NOT NULL,
    high        REAL     NOT NULL,
    low         REAL     NOT NULL,
    close       REAL     NOT NULL,
    volume      REAL     NOT NULL,
    inserted_at DATETIME,
    PRIMARY KEY (timestamp, timeframe)
)`

func newSQLiteBarStore(t *testing.T) (*gorm.DB, BarStore) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "bars.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(sqliteBarsDDL).Error)
	return db, NewGormBarStore(db)
}

func countBars(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Bar{}).Count(&n).Error)
	return n
}

func TestGormInsertManyIdempotent(t *testing.T) {
	ctx := context.Background()
	db, s := newSQLiteBarStore(t)
	bars := []models.Bar{bar(0, models.TF1m, 100), bar(1, models.TF1m, 101), bar(2, models.TF1m, 102)}

	n, err := s.InsertMany(ctx, bars)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.InsertMany(ctx, bars)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 3, countBars(t, db))
}

func TestGormInsertManyNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	_, s := newSQLiteBarStore(t)

	_, err := s.InsertMany(ctx, []models.Bar{bar(0, models.TF1m, 100)})
	require.NoError(t, err)

	n, err := s.InsertMany(ctx, []models.Bar{bar(0, models.TF1m, 999), bar(1, models.TF1m, 101)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.QueryRange(ctx, base, base.Add(time.Minute), models.TF1m)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Open)
	assert.Equal(t, 101.0, got[1].Open)
}

func TestGormQueryRangeInclusiveAndOrdered(t *testing.T) {
	ctx := context.Background()
	_, s := newSQLiteBarStore(t)

	// inserted out of order, mixed timeframes
	_, err := s.InsertMany(ctx, []models.Bar{
		bar(4, models.TF1m, 104),
		bar(0, models.TF1m, 100),
		bar(2, models.TF1m, 102),
		bar(0, models.TF5m, 500),
		bar(5, models.TF1m, 105),
	})
	require.NoError(t, err)

	got, err := s.QueryRange(ctx, base, base.Add(4*time.Minute), models.TF1m)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base, got[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Minute), got[1].Timestamp)
	assert.Equal(t, base.Add(4*time.Minute), got[2].Timestamp)
	for _, b := range got {
		assert.Equal(t, models.TF1m, b.Timeframe)
		assert.Equal(t, time.UTC, b.Timestamp.Location())
	}

	empty, err := s.QueryRange(ctx, base.Add(time.Hour), base.Add(2*time.Hour), models.TF1m)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormExists(t *testing.T) {
	ctx := context.Background()
	_, s := newSQLiteBarStore(t)
	_, err := s.InsertMany(ctx, []models.Bar{bar(0, models.TF3m, 100)})
	require.NoError(t, err)

	ok, err := s.Exists(ctx, base, models.TF3m)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, base, models.TF1m)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormInsertManyRollsBackWholeBatch(t *testing.T) {
	ctx := context.Background()
	db, s := newSQLiteBarStore(t)
	require.NoError(t, db.Exec(`
		CREATE TRIGGER reject_bar BEFORE INSERT ON bars
		WHEN NEW.open = 4242
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`).Error)

	// the bad row sits in the second chunk, after a full chunk was already written
	bars := make([]models.Bar, 0, 600)
	for i := 0; i < 600; i++ {
		price := 100.0
		if i == 550 {
			price = 4242
		}
		bars = append(bars, bar(i, models.TF1m, price))
	}
	require.Greater(t, len(bars), insertBatchSize)

	n, err := s.InsertMany(ctx, bars)
	require.Error(t, err)
	assert.ErrorContains(t, err, "rejected")
	assert.Zero(t, n)
	assert.Zero(t, countBars(t, db))
}

func TestGormInsertManyRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	db, s := newSQLiteBarStore(t)

	bad := bar(1, models.TF1m, 101)
	bad.High = bad.Open - 5
	_, err := s.InsertMany(ctx, []models.Bar{bar(0, models.TF1m, 100), bad})
	require.Error(t, err)
	assert.Zero(t, countBars(t, db))
}

func TestGormConcurrentInsertsOfSameKeys(t *testing.T) {
	ctx := context.Background()
	db, s := newSQLiteBarStore(t)
	bars := []models.Bar{bar(0, models.TF1m, 100), bar(1, models.TF1m, 101), bar(2, models.TF1m, 102)}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.InsertMany(ctx, bars)
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, total)
	assert.EqualValues(t, 3, countBars(t, db))
}
