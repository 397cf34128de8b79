package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/evaluator"
	"github.com/navid-fn/tradereplay/internal/events"
	"github.com/navid-fn/tradereplay/internal/models"
)

// OpenTradeInput is the caller supplied part of a new trade.
type OpenTradeInput struct {
	SessionID   string
	EntryAt     time.Time
	Direction   models.Direction
	EntryPrice  float64
	Notes       string
	Annotations json.RawMessage
	IsAGrade    bool
}

// OpenTrade records a pending trade with stop and target derived from the rules.
func (s *Service) OpenTrade(ctx context.Context, in OpenTradeInput) (TradeView, error) {
	session, err := s.repo.GetSession(ctx, in.SessionID)
	if err != nil {
		return TradeView{}, err
	}
	if session.IsCompleted {
		return TradeView{}, ErrSessionCompleted
	}
	if in.EntryAt.IsZero() {
		return TradeView{}, fmt.Errorf("%w: entry timestamp required", ErrValidation)
	}
	if len(in.Annotations) > 0 && !json.Valid(in.Annotations) {
		return TradeView{}, fmt.Errorf("%w: annotations must be JSON", ErrValidation)
	}

	trade, err := evaluator.NewTrade(evaluator.TradeInput{
		SessionID:   session.ID,
		EntryAt:     in.EntryAt,
		Direction:   in.Direction,
		EntryPrice:  in.EntryPrice,
		IsAGrade:    in.IsAGrade,
		Notes:       in.Notes,
		Annotations: datatypes.JSON(in.Annotations),
	}, s.cfg.Rules)
	if err != nil {
		return TradeView{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.repo.CreateTrade(ctx, trade); err != nil {
		return TradeView{}, fmt.Errorf("create trade: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trade_id":    trade.ID,
		"session_id":  trade.SessionID,
		"direction":   trade.Direction,
		"entry_price": trade.EntryPrice,
	}).Info("trade opened")
	s.publish(ctx, events.TradeOpened, trade)
	return newTradeView(trade), nil
}

// ResolveResult is returned by ResolveTrade. AlreadyResolved reports a trade
// that was closed before this call, by an earlier resolution or a scratch.
type ResolveResult struct {
	Trade           TradeView `json:"trade"`
	AlreadyResolved bool      `json:"already_resolved"`
}

// ResolveTrade evaluates a pending trade against the resolution-timeframe bars
// of date in the session's window. date defaults to the entry's UTC date.
// A trade that is already resolved is returned unchanged with AlreadyResolved set.
func (s *Service) ResolveTrade(ctx context.Context, tradeID, date string) (ResolveResult, error) {
	trade, err := s.repo.GetTrade(ctx, tradeID)
	if err != nil {
		return ResolveResult{}, err
	}
	if trade.IsResolved() {
		return ResolveResult{Trade: newTradeView(trade), AlreadyResolved: true}, nil
	}
	session, err := s.repo.GetSession(ctx, trade.SessionID)
	if err != nil {
		return ResolveResult{}, err
	}

	day := calendar.Day(trade.EntryTimestamp)
	if date != "" {
		if day, err = calendar.ParseDate(date); err != nil {
			return ResolveResult{}, err
		}
	}

	slice, err := s.replay.Slice(ctx, day, session.TimeWindow, s.cfg.ResolutionTimeframe, 0)
	if err != nil {
		return ResolveResult{}, err
	}
	res, err := evaluator.Evaluate(trade, slice.Bars)
	if err != nil {
		return ResolveResult{}, err
	}
	if !res.Resolved() {
		return ResolveResult{Trade: newTradeView(trade)}, nil
	}

	_, resolved, err := s.repo.UpdateTrade(ctx, tradeID, func(sess *models.Session, t *models.Trade) error {
		if err := evaluator.Apply(t, res); err != nil {
			return err
		}
		sess.RecordOutcome(t)
		return nil
	})
	if errors.Is(err, evaluator.ErrAlreadyResolved) {
		// resolved concurrently, report what was stored
		stored, getErr := s.repo.GetTrade(ctx, tradeID)
		if getErr != nil {
			return ResolveResult{}, getErr
		}
		return ResolveResult{Trade: newTradeView(stored), AlreadyResolved: true}, nil
	}
	if err != nil {
		return ResolveResult{}, fmt.Errorf("resolve trade: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trade_id":    resolved.ID,
		"outcome":     resolved.Outcome,
		"pnl_points":  resolved.PnLPoints,
		"substituted": slice.Substituted,
	}).Info("trade resolved")
	s.publish(ctx, events.TradeResolved, resolved)
	return ResolveResult{Trade: newTradeView(resolved)}, nil
}

// DeclareScratch closes a pending trade as a user-declared break-even.
func (s *Service) DeclareScratch(ctx context.Context, tradeID string, exitAt time.Time, exitPrice float64) (TradeView, error) {
	if exitAt.IsZero() || exitPrice <= 0 {
		return TradeView{}, fmt.Errorf("%w: exit timestamp and price required", ErrValidation)
	}
	_, trade, err := s.repo.UpdateTrade(ctx, tradeID, func(sess *models.Session, t *models.Trade) error {
		if err := evaluator.Scratch(t, exitAt, exitPrice); err != nil {
			return err
		}
		sess.RecordOutcome(t)
		return nil
	})
	if err != nil {
		return TradeView{}, err
	}
	s.logger.WithField("trade_id", trade.ID).Info("trade scratched")
	s.publish(ctx, events.TradeScratched, trade)
	return newTradeView(trade), nil
}

// ListTrades returns the session's trades in creation order.
func (s *Service) ListTrades(ctx context.Context, sessionID string) ([]TradeView, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	trades, err := s.repo.ListTrades(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return newTradeViews(trades), nil
}
