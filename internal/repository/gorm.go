package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/navid-fn/tradereplay/internal/models"
)

type gormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) SessionRepository {
	return &gormSessionRepository{db: db}
}

func (r *gormSessionRepository) CreateSession(ctx context.Context, s *models.Session) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(s).Error
}

func (r *gormSessionRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *gormSessionRepository) UpdateSession(ctx context.Context, id string, fn SessionFunc) (*models.Session, error) {
	var s models.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSession(tx, id, &s); err != nil {
			return err
		}
		if err := fn(&s); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&s).Error
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormSessionRepository) DeleteSession(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.Trade{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Session{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *gormSessionRepository) CreateTrade(ctx context.Context, t *models.Trade) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *gormSessionRepository) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	var t models.Trade
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *gormSessionRepository) ListTrades(ctx context.Context, sessionID string) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc, id asc").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *gormSessionRepository) UpdateTrade(ctx context.Context, tradeID string, fn TradeFunc) (*models.Session, *models.Trade, error) {
	var (
		s models.Session
		t models.Trade
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", tradeID).Error; err != nil {
			return notFound(err)
		}
		if err := lockSession(tx, t.SessionID, &s); err != nil {
			return err
		}
		if err := fn(&s, &t); err != nil {
			return err
		}
		if err := tx.Save(&t).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&s).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &s, &t, nil
}

func lockSession(tx *gorm.DB, id string, s *models.Session) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(s, "id = ?", id).Error
	return notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
