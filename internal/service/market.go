package service

import (
	"context"
	"fmt"

	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/replay"
)

// WindowView describes a configured time window.
type WindowView struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// TimeWindows lists the configured windows ordered by start time.
func (s *Service) TimeWindows() []WindowView {
	ws := s.cal.Windows()
	out := make([]WindowView, len(ws))
	for i, w := range ws {
		out[i] = WindowView{Key: w.Key, Label: w.Label, StartTime: w.Start.String(), EndTime: w.End.String()}
	}
	return out
}

// AvailableDates lists the practice scenarios between two ISO dates.
// An empty window key uses the earliest window.
func (s *Service) AvailableDates(startDate, endDate, windowKey string) ([]calendar.Scenario, error) {
	start, err := calendar.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseDate(endDate)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date before start_date", ErrValidation)
	}
	if windowKey == "" {
		if ws := s.cal.Windows(); len(ws) > 0 {
			windowKey = ws[0].Key
		}
	}
	scenarios, err := s.cal.AvailableSessions(start, end, windowKey)
	if err != nil {
		return nil, err
	}
	if scenarios == nil {
		scenarios = []calendar.Scenario{}
	}
	return scenarios, nil
}

// Candles returns a reveal-limited single-timeframe replay slice.
// An empty timeframe uses the resolution timeframe.
func (s *Service) Candles(ctx context.Context, date, windowKey, timeframe string, limit int) (replay.Slice, error) {
	day, err := calendar.ParseDate(date)
	if err != nil {
		return replay.Slice{}, err
	}
	tf := s.cfg.ResolutionTimeframe
	if timeframe != "" {
		if tf, err = models.ParseTimeframe(timeframe); err != nil {
			return replay.Slice{}, err
		}
	}
	if limit < 0 {
		return replay.Slice{}, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	slice, err := s.replay.Slice(ctx, day, windowKey, tf, limit)
	if err != nil {
		return replay.Slice{}, err
	}
	if slice.Bars == nil {
		slice.Bars = []models.Bar{}
	}
	return slice, nil
}

// Replay returns the multi-timeframe replay of date. An empty list uses the configured timeframes.
func (s *Service) Replay(ctx context.Context, date, windowKey string, timeframes []string) (replay.Replay, error) {
	day, err := calendar.ParseDate(date)
	if err != nil {
		return replay.Replay{}, err
	}
	tfs := s.cfg.ReplayTimeframes
	if len(timeframes) > 0 {
		tfs = make([]models.Timeframe, 0, len(timeframes))
		for _, raw := range timeframes {
			tf, err := models.ParseTimeframe(raw)
			if err != nil {
				return replay.Replay{}, err
			}
			tfs = append(tfs, tf)
		}
	}
	return s.replay.Prepare(ctx, day, windowKey, tfs)
}
