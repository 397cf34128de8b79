package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/tradereplay/internal/models"
)

func TestFirstWriteVersionPrefersEarlierWrites(t *testing.T) {
	first := time.Date(2024, 11, 4, 8, 0, 0, 0, time.UTC)
	later := first.Add(time.Millisecond)

	// ReplacingMergeTree keeps the row with the highest version
	assert.Greater(t, firstWriteVersion(first), firstWriteVersion(later))
	assert.Greater(t, firstWriteVersion(later), firstWriteVersion(later.Add(time.Nanosecond)))
}

func TestClickHouseInsertManyRejectsOversizedBatch(t *testing.T) {
	// conn is never touched: the size check runs before any query
	s := &clickhouseBarStore{maxRows: 2}
	bars := []models.Bar{bar(0, models.TF1m, 100), bar(1, models.TF1m, 101), bar(2, models.TF1m, 102)}

	n, err := s.InsertMany(context.Background(), bars)
	require.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Zero(t, n)
}

func TestClickHouseInsertManyValidatesBeforeWriting(t *testing.T) {
	s := &clickhouseBarStore{maxRows: 2}

	_, err := s.InsertMany(context.Background(), []models.Bar{{Timestamp: base, Timeframe: "7m", Open: 1, High: 1, Low: 1, Close: 1}})
	assert.ErrorIs(t, err, models.ErrUnknownTimeframe)

	n, err := s.InsertMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
