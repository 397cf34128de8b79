package service

import (
	"time"

	"gorm.io/datatypes"

	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/models"
)

// SessionView is the outward session record.
type SessionView struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	DateRangeStart     string    `json:"date_range_start"`
	DateRangeEnd       string    `json:"date_range_end"`
	TimeWindow         string    `json:"time_window"`
	Playlist           []string  `json:"playlist"`
	CurrentDateIndex   int       `json:"current_date_index"`
	CurrentDate        string    `json:"current_date,omitempty"`
	TotalDates         int       `json:"total_dates"`
	TotalTrades        int       `json:"total_trades"`
	WinningTrades      int       `json:"winning_trades"`
	LosingTrades       int       `json:"losing_trades"`
	ScratchTrades      int       `json:"scratch_trades"`
	TotalPnL           float64   `json:"total_pnl"`
	WinRate            float64   `json:"win_rate"`
	AveragePnL         float64   `json:"average_pnl"`
	ProgressPercentage float64   `json:"progress_percentage"`
	IsCompleted        bool      `json:"is_completed"`
}

func newSessionView(s *models.Session) SessionView {
	current, _ := s.CurrentDate()
	return SessionView{
		ID:                 s.ID,
		CreatedAt:          s.CreatedAt,
		DateRangeStart:     s.DateRangeStart.Format(calendar.DateLayout),
		DateRangeEnd:       s.DateRangeEnd.Format(calendar.DateLayout),
		TimeWindow:         s.TimeWindow,
		Playlist:           []string(s.Playlist),
		CurrentDateIndex:   s.CurrentDateIndex,
		CurrentDate:        current,
		TotalDates:         len(s.Playlist),
		TotalTrades:        s.TotalTrades,
		WinningTrades:      s.WinningTrades,
		LosingTrades:       s.LosingTrades,
		ScratchTrades:      s.ScratchTrades,
		TotalPnL:           round2(s.TotalPnL),
		WinRate:            round2(s.WinRate()),
		AveragePnL:         round2(s.AveragePnL()),
		ProgressPercentage: round2(s.ProgressPercentage()),
		IsCompleted:        s.IsCompleted,
	}
}

// TradeView is the outward trade record.
type TradeView struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"session_id"`
	CreatedAt       time.Time        `json:"created_at"`
	EntryTimestamp  time.Time        `json:"entry_timestamp"`
	ExitTimestamp   *time.Time       `json:"exit_timestamp"`
	Direction       models.Direction `json:"direction"`
	EntryPrice      float64          `json:"entry_price"`
	StopLoss        float64          `json:"stop_loss"`
	TakeProfit      float64          `json:"take_profit"`
	ExitPrice       *float64         `json:"exit_price"`
	Outcome         models.Outcome   `json:"outcome"`
	PnLPoints       float64          `json:"pnl_points"`
	PnLPercentage   float64          `json:"pnl_percentage"`
	RiskRewardRatio float64          `json:"risk_reward_ratio"`
	DurationMinutes *float64         `json:"duration_minutes"`
	IsAGrade        bool             `json:"is_a_grade"`
	Notes           string           `json:"notes"`
	Annotations     datatypes.JSON   `json:"annotations,omitempty"`
}

func newTradeView(t *models.Trade) TradeView {
	v := TradeView{
		ID:              t.ID,
		SessionID:       t.SessionID,
		CreatedAt:       t.CreatedAt,
		EntryTimestamp:  t.EntryTimestamp,
		ExitTimestamp:   t.ExitTimestamp,
		Direction:       t.Direction,
		EntryPrice:      t.EntryPrice,
		StopLoss:        t.StopLoss,
		TakeProfit:      t.TakeProfit,
		ExitPrice:       t.ExitPrice,
		Outcome:         t.Outcome,
		PnLPoints:       round2(t.PnLPoints),
		PnLPercentage:   round2(t.PnLPercentage),
		RiskRewardRatio: round2(t.RiskRewardRatio()),
		IsAGrade:        t.IsAGrade,
		Notes:           t.Notes,
		Annotations:     t.Annotations,
	}
	if d, ok := t.DurationMinutes(); ok {
		d = round2(d)
		v.DurationMinutes = &d
	}
	return v
}

func newTradeViews(trades []models.Trade) []TradeView {
	out := make([]TradeView, len(trades))
	for i := range trades {
		out[i] = newTradeView(&trades[i])
	}
	return out
}
