// Package repository persists practice sessions and their trades.
package repository

import (
	"context"
	"errors"

	"github.com/navid-fn/tradereplay/internal/models"
)

// ErrNotFound is returned when a session or trade id does not exist.
var ErrNotFound = errors.New("not found")

// SessionFunc mutates a locked session. Returning an error aborts the update.
type SessionFunc func(s *models.Session) error

// TradeFunc mutates a locked trade and its locked session together.
type TradeFunc func(s *models.Session, t *models.Trade) error

// SessionRepository stores sessions and the trades they own.
// Every Update* call is one atomic read-modify-write.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, id string, fn SessionFunc) (*models.Session, error)

	// DeleteSession removes the session and all of its trades.
	DeleteSession(ctx context.Context, id string) error

	CreateTrade(ctx context.Context, t *models.Trade) error
	GetTrade(ctx context.Context, id string) (*models.Trade, error)

	// ListTrades returns the session's trades ordered by creation.
	ListTrades(ctx context.Context, sessionID string) ([]models.Trade, error)

	// UpdateTrade locks the trade and its session, applies fn and saves both.
	UpdateTrade(ctx context.Context, tradeID string, fn TradeFunc) (*models.Session, *models.Trade, error)
}
