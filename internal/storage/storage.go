// Package storage provides Bar Store implementations for cached OHLCV data.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/navid-fn/tradereplay/internal/models"
)

// BarStore is durable keyed storage of OHLCV bars.
// Implementations must be safe for concurrent use, including concurrent
// InsertMany calls carrying the same keys.
type BarStore interface {
	// Exists reports whether a bar with this key is stored.
	Exists(ctx context.Context, ts time.Time, tf models.Timeframe) (bool, error)

	// InsertMany inserts only bars whose key is absent and returns how many were added.
	// The batch is atomic: on error no bar from it is visible.
	InsertMany(ctx context.Context, bars []models.Bar) (int, error)

	// QueryRange returns bars of tf with start <= timestamp <= end, ascending.
	QueryRange(ctx context.Context, start, end time.Time, tf models.Timeframe) ([]models.Bar, error)

	// Close releases connection resources.
	Close() error
}

// prepareBatch validates every bar and removes in-batch duplicates, keeping the first.
func prepareBatch(bars []models.Bar) ([]models.Bar, error) {
	seen := make(map[models.BarKey]struct{}, len(bars))
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Timeframe.Valid() {
			return nil, fmt.Errorf("%w: %q", models.ErrUnknownTimeframe, b.Timeframe)
		}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		b.Timestamp = b.Timestamp.UTC()
		k := b.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, b)
	}
	return out, nil
}
