package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/repository"
)

// AdvanceResult is returned by AdvanceSession.
type AdvanceResult struct {
	Session   SessionView        `json:"session"`
	Next      *calendar.Scenario `json:"next_scenario,omitempty"`
	Completed bool               `json:"session_completed"`
}

// CreateSession starts a session over dates in the given window. The playlist
// keeps the caller's order and never changes afterwards.
func (s *Service) CreateSession(ctx context.Context, dates []string, windowKey string) (SessionView, error) {
	if len(dates) == 0 {
		return SessionView{}, fmt.Errorf("%w: no dates selected", ErrValidation)
	}
	if len(dates) > s.cfg.MaxDatesPerSession {
		return SessionView{}, fmt.Errorf("%w: %d dates, maximum is %d", ErrPlaylistTooLong, len(dates), s.cfg.MaxDatesPerSession)
	}
	if _, err := s.cal.Window(windowKey); err != nil {
		return SessionView{}, err
	}

	session := &models.Session{
		ID:         uuid.NewString(),
		TimeWindow: windowKey,
		Playlist:   make([]string, 0, len(dates)),
	}
	for i, raw := range dates {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			return SessionView{}, err
		}
		if i == 0 || d.Before(session.DateRangeStart) {
			session.DateRangeStart = d
		}
		if i == 0 || d.After(session.DateRangeEnd) {
			session.DateRangeEnd = d
		}
		session.Playlist = append(session.Playlist, d.Format(calendar.DateLayout))
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return SessionView{}, fmt.Errorf("create session: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"dates":       len(session.Playlist),
		"time_window": windowKey,
	}).Info("session created")
	return newSessionView(session), nil
}

func (s *Service) GetSession(ctx context.Context, id string) (SessionView, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	return newSessionView(session), nil
}

// AdvanceSession moves the cursor to the next playlist date, or marks the
// session completed when it is already on the last one.
func (s *Service) AdvanceSession(ctx context.Context, id string) (AdvanceResult, error) {
	var (
		advanced bool
		next     time.Time
	)
	session, err := s.repo.UpdateSession(ctx, id, func(sess *models.Session) error {
		if sess.IsCompleted {
			return ErrSessionCompleted
		}
		if advanced = sess.Advance(); !advanced {
			return nil
		}
		date, _ := sess.CurrentDate()
		d, err := calendar.ParseDate(date)
		if err != nil {
			return fmt.Errorf("%w: session %s playlist entry %d: %v", ErrCorruptSession, sess.ID, sess.CurrentDateIndex, err)
		}
		next = d
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrSessionCompleted) && !errors.Is(err, repository.ErrNotFound) {
			s.logger.WithError(err).WithField("session_id", id).Error("failed to advance session")
		}
		return AdvanceResult{}, err
	}

	res := AdvanceResult{Session: newSessionView(session), Completed: session.IsCompleted}
	if !advanced {
		s.logger.WithField("session_id", id).Info("session completed")
		return res, nil
	}

	meta, ok, err := s.cal.ScenarioMetadata(next, session.TimeWindow)
	if err != nil {
		return AdvanceResult{}, err
	}
	if ok {
		res.Next = &meta
	}
	return res, nil
}

// DeleteSession removes the session and its trades.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("session_id", id).Info("session deleted")
	return nil
}
