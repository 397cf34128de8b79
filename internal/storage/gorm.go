package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/navid-fn/tradereplay/internal/models"
)

const insertBatchSize = 500

type gormBarStore struct {
	db *gorm.DB
}

// NewGormBarStore returns a BarStore backed by the bars table of a gorm (postgres) connection.
func NewGormBarStore(db *gorm.DB) BarStore {
	return &gormBarStore{db: db}
}

func (s *gormBarStore) Exists(ctx context.Context, ts time.Time, tf models.Timeframe) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Bar{}).
		Where("timestamp = ? AND timeframe = ?", ts.UTC(), tf).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertMany relies on ON CONFLICT DO NOTHING so concurrent writers of the same
// keys never fail and never overwrite.
func (s *gormBarStore) InsertMany(ctx context.Context, bars []models.Bar) (int, error) {
	batch, err := prepareBatch(bars)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	var inserted int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&batch, insertBatchSize)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert bars: %w", err)
	}
	return int(inserted), nil
}

func (s *gormBarStore) QueryRange(ctx context.Context, start, end time.Time, tf models.Timeframe) ([]models.Bar, error) {
	var bars []models.Bar
	err := s.db.WithContext(ctx).
		Where("timeframe = ? AND timestamp >= ? AND timestamp <= ?", tf, start.UTC(), end.UTC()).
		Order("timestamp asc").
		Find(&bars).Error
	if err != nil {
		return nil, err
	}
	for i := range bars {
		bars[i].Timestamp = bars[i].Timestamp.UTC()
	}
	return bars, nil
}

func (s *gormBarStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
