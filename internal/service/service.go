// Package service implements the caller-facing practice operations on top of
// the replay pipeline, the evaluator and the session repository.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/configs"
	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/evaluator"
	"github.com/navid-fn/tradereplay/internal/events"
	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/replay"
	"github.com/navid-fn/tradereplay/internal/repository"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrSessionCompleted = errors.New("session completed")
	ErrPlaylistTooLong  = errors.New("too many dates for one session")
	ErrCorruptSession   = errors.New("corrupt session state")
)

// ReplaySource prepares replay bars.
type ReplaySource interface {
	Prepare(ctx context.Context, date time.Time, windowKey string, tfs []models.Timeframe) (replay.Replay, error)
	Slice(ctx context.Context, date time.Time, windowKey string, tf models.Timeframe, limit int) (replay.Slice, error)
}

// Config holds the practice rules the service enforces.
type Config struct {
	Rules               evaluator.Rules
	ResolutionTimeframe models.Timeframe
	ReplayTimeframes    []models.Timeframe
	MaxDatesPerSession  int
	RecentTrades        int
}

// NewConfig derives the service config from the trading rules.
func NewConfig(t configs.TradingConfig) Config {
	return Config{
		Rules: evaluator.Rules{
			StopDistance:   t.StopLossPoints,
			RewardMultiple: t.RewardMultiple,
		},
		ResolutionTimeframe: t.ResolutionTimeframe,
		ReplayTimeframes:    t.ReplayTimeframes,
		MaxDatesPerSession:  t.MaxDatesPerSession,
		RecentTrades:        10,
	}
}

type Service struct {
	repo      repository.SessionRepository
	cal       *calendar.Calendar
	replay    ReplaySource
	publisher events.Publisher
	cfg       Config
	logger    logrus.FieldLogger
	now       func() time.Time
}

func New(
	repo repository.SessionRepository,
	cal *calendar.Calendar,
	replay ReplaySource,
	publisher events.Publisher,
	cfg Config,
	logger logrus.FieldLogger,
) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if cfg.RecentTrades <= 0 {
		cfg.RecentTrades = 10
	}
	return &Service{
		repo:      repo,
		cal:       cal,
		replay:    replay,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// publish runs after the commit and never fails the caller.
func (s *Service) publish(ctx context.Context, eventType string, t *models.Trade) {
	ev := events.NewTradeEvent(eventType, t, s.now())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"trade_id": t.ID,
			"event":    eventType,
		}).Warn("failed to publish trade event")
	}
}

func round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}
