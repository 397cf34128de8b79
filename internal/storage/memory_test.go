package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/tradereplay/internal/models"
)

var base = time.Date(2024, 11, 4, 8, 0, 0, 0, time.UTC)

func bar(minute int, tf models.Timeframe, price float64) models.Bar {
	return models.Bar{
		Timestamp: base.Add(time.Duration(minute) * time.Minute),
		Timeframe: tf,
		Open:      price,
		High:      price + 1,
		Low:       price - 1,
		Close:     price,
		Volume:    5,
	}
}

func TestInsertManyIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	bars := []models.Bar{bar(0, models.TF1m, 100), bar(1, models.TF1m, 101), bar(2, models.TF1m, 102)}

	n, err := s.InsertMany(ctx, bars)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.InsertMany(ctx, bars)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, s.Len())
}

func TestInsertManySkipsExistingNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.InsertMany(ctx, []models.Bar{bar(0, models.TF1m, 100)})
	require.NoError(t, err)

	n, err := s.InsertMany(ctx, []models.Bar{bar(0, models.TF1m, 999), bar(1, models.TF1m, 101)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.QueryRange(ctx, base, base.Add(time.Minute), models.TF1m)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Open)
}

func TestInsertManyDuplicateWithinBatch(t *testing.T) {
	s := NewMemoryStore()
	n, err := s.InsertMany(context.Background(), []models.Bar{bar(0, models.TF1m, 100), bar(0, models.TF1m, 100)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertManyRejectsWholeBatchOnInvalidBar(t *testing.T) {
	s := NewMemoryStore()
	bad := bar(1, models.TF1m, 100)
	bad.High = 90

	_, err := s.InsertMany(context.Background(), []models.Bar{bar(0, models.TF1m, 100), bad})
	require.Error(t, err)
	assert.Zero(t, s.Len())
}

func TestInsertManyConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	bars := []models.Bar{bar(0, models.TF1m, 100), bar(1, models.TF1m, 101)}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range 8 {
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
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, s.Len())
}

func TestQueryRangeInclusiveOrderedPerTimeframe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.InsertMany(ctx, []models.Bar{
		bar(6, models.TF3m, 106),
		bar(0, models.TF1m, 100),
		bar(3, models.TF3m, 103),
		bar(0, models.TF3m, 100),
		bar(9, models.TF3m, 109),
	})
	require.NoError(t, err)

	got, err := s.QueryRange(ctx, base, base.Add(6*time.Minute), models.TF3m)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, base, got[0].Timestamp)
	assert.Equal(t, base.Add(3*time.Minute), got[1].Timestamp)
	assert.Equal(t, base.Add(6*time.Minute), got[2].Timestamp)

	ok, err := s.Exists(ctx, base.Add(9*time.Minute), models.TF3m)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, base.Add(9*time.Minute), models.TF1m)
	require.NoError(t, err)
	assert.False(t, ok)
}
