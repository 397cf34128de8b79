package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/navid-fn/tradereplay/internal/models"
)

// MemoryStore is an in-process BarStore. It is used by tests and by BAR_STORE=memory.
type MemoryStore struct {
	mu   sync.RWMutex
	bars map[models.BarKey]models.Bar
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bars: make(map[models.BarKey]models.Bar)}
}

func (s *MemoryStore) Exists(_ context.Context, ts time.Time, tf models.Timeframe) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bars[models.BarKey{Timestamp: ts.UnixMilli(), Timeframe: tf}]
	return ok, nil
}

func (s *MemoryStore) InsertMany(ctx context.Context, bars []models.Bar) (int, error) {
	batch, err := prepareBatch(bars)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, b := range batch {
		k := b.Key()
		if _, ok := s.bars[k]; ok {
			continue
		}
		s.bars[k] = b
		inserted++
	}
	return inserted, nil
}

func (s *MemoryStore) QueryRange(_ context.Context, start, end time.Time, tf models.Timeframe) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bar
	for k, b := range s.bars {
		if k.Timeframe != tf {
			continue
		}
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b models.Bar) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

// Len is the number of stored bars across all timeframes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

func (s *MemoryStore) Close() error { return nil }
