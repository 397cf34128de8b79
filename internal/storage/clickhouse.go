package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/navid-fn/tradereplay/internal/models"
)

// chBar is the row shape of the ClickHouse bars table.
type chBar struct {
	Timestamp time.Time `ch:"timestamp"`
	Timeframe string    `ch:"timeframe"`
	Open      float64   `ch:"open"`
	High      float64   `ch:"high"`
	Low       float64   `ch:"low"`
	Close     float64   `ch:"close"`
	Volume    float64   `ch:"volume"`
}

// maxInsertRows matches the server's max_insert_block_size. A native block
// no larger than this lands as a single part.
const maxInsertRows = 1 << 20

// ErrBatchTooLarge is returned when a batch cannot be written as one block.
var ErrBatchTooLarge = errors.New("bar batch exceeds a single insert block")

// clickhouseBarStore implements BarStore using the native ClickHouse driver.
// The table is an unpartitioned ReplacingMergeTree ordered by (timeframe, timestamp)
// and versioned so that the earliest write of a key survives merges. Reads use FINAL.
type clickhouseBarStore struct {
	conn    driver.Conn
	maxRows int
}

// NewClickHouseBarStore parses the DSN, opens a connection and verifies it with a ping.
// Returns an error if the connection cannot be established within 5 seconds.
func NewClickHouseBarStore(dsn string) (BarStore, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return &clickhouseBarStore{conn: conn, maxRows: maxInsertRows}, nil
}

func (s *clickhouseBarStore) Exists(ctx context.Context, ts time.Time, tf models.Timeframe) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count() FROM bars FINAL WHERE timeframe = ? AND timestamp = ?`,
		string(tf), ts.UTC(),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// firstWriteVersion orders row versions so that an earlier write beats a later one.
// ReplacingMergeTree keeps the highest version.
func firstWriteVersion(t time.Time) uint64 {
	return math.MaxUint64 - uint64(t.UnixNano())
}

// InsertMany drops keys already present in the batch's time span, then sends the
// rest as a single native block. One block into the unpartitioned table becomes one
// part, so the insert is applied all-or-nothing. Batches larger than one block
// are rejected before anything is written.
func (s *clickhouseBarStore) InsertMany(ctx context.Context, bars []models.Bar) (int, error) {
	batch, err := prepareBatch(bars)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}
	limit := s.maxRows
	if limit <= 0 {
		limit = maxInsertRows
	}
	if len(batch) > limit {
		return 0, fmt.Errorf("%w: %d rows, limit %d", ErrBatchTooLarge, len(batch), limit)
	}

	existing, err := s.existingKeys(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("load existing keys: %w", err)
	}

	chBatch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			timestamp, timeframe,
			open, high, low, close, volume,
			inserted_at, version
		)
	`)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	version := firstWriteVersion(now)
	appended := 0
	for _, b := range batch {
		if _, ok := existing[b.Key()]; ok {
			continue
		}
		err := chBatch.Append(
			b.Timestamp,
			string(b.Timeframe),
			b.Open,
			b.High,
			b.Low,
			b.Close,
			b.Volume,
			now,
			version,
		)
		if err != nil {
			_ = chBatch.Abort()
			return 0, err
		}
		appended++
	}

	if appended == 0 {
		_ = chBatch.Abort()
		return 0, nil
	}
	if err := chBatch.Send(); err != nil {
		return 0, fmt.Errorf("insert bars: %w", err)
	}
	return appended, nil
}

func (s *clickhouseBarStore) existingKeys(ctx context.Context, batch []models.Bar) (map[models.BarKey]struct{}, error) {
	type span struct{ lo, hi time.Time }
	spans := make(map[models.Timeframe]span)
	for _, b := range batch {
		sp, ok := spans[b.Timeframe]
		if !ok {
			spans[b.Timeframe] = span{b.Timestamp, b.Timestamp}
			continue
		}
		if b.Timestamp.Before(sp.lo) {
			sp.lo = b.Timestamp
		}
		if b.Timestamp.After(sp.hi) {
			sp.hi = b.Timestamp
		}
		spans[b.Timeframe] = sp
	}

	keys := make(map[models.BarKey]struct{})
	for tf, sp := range spans {
		var rows []struct {
			Timestamp time.Time `ch:"timestamp"`
		}
		err := s.conn.Select(ctx, &rows,
			`SELECT timestamp FROM bars FINAL WHERE timeframe = ? AND timestamp >= ? AND timestamp <= ?`,
			string(tf), sp.lo, sp.hi,
		)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			keys[models.BarKey{Timestamp: r.Timestamp.UnixMilli(), Timeframe: tf}] = struct{}{}
		}
	}
	return keys, nil
}

func (s *clickhouseBarStore) QueryRange(ctx context.Context, start, end time.Time, tf models.Timeframe) ([]models.Bar, error) {
	var rows []chBar
	err := s.conn.Select(ctx, &rows, `
		SELECT timestamp, timeframe, open, high, low, close, volume
		FROM bars FINAL
		WHERE timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp
	`, string(tf), start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}

	bars := make([]models.Bar, len(rows))
	for i, r := range rows {
		bars[i] = models.Bar{
			Timestamp: r.Timestamp.UTC(),
			Timeframe: models.Timeframe(r.Timeframe),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		}
	}
	return bars, nil
}

// Close closes the ClickHouse connection.
func (s *clickhouseBarStore) Close() error {
	return s.conn.Close()
}
