package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session is a practice run over an immutable playlist of dates with a fixed time window.
// The cursor and the running aggregates are the only mutable fields.
type Session struct {
	ID        string    `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	DateRangeStart time.Time `gorm:"column:date_range_start;type:date;not null" json:"date_range_start"`
	DateRangeEnd   time.Time `gorm:"column:date_range_end;type:date;not null" json:"date_range_end"`
	TimeWindow     string    `gorm:"column:time_window;type:varchar(20);not null" json:"time_window"`

	// Playlist holds ISO dates ("2024-11-04").
	Playlist         datatypes.JSONSlice[string] `gorm:"column:playlist;type:jsonb;not null" json:"playlist"`
	CurrentDateIndex int                         `gorm:"column:current_date_index;not null;default:0" json:"current_date_index"`

	TotalTrades   int     `gorm:"column:total_trades;not null;default:0" json:"total_trades"`
	WinningTrades int     `gorm:"column:winning_trades;not null;default:0" json:"winning_trades"`
	LosingTrades  int     `gorm:"column:losing_trades;not null;default:0" json:"losing_trades"`
	ScratchTrades int     `gorm:"column:scratch_trades;not null;default:0" json:"scratch_trades"`
	TotalPnL      float64 `gorm:"column:total_pnl;not null;default:0" json:"total_pnl"`

	IsCompleted bool `gorm:"column:is_completed;not null;default:false" json:"is_completed"`

	Trades []Trade `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string {
	return "sessions"
}

// CurrentDate returns the playlist entry under the cursor.
func (s *Session) CurrentDate() (string, bool) {
	if s.CurrentDateIndex >= 0 && s.CurrentDateIndex < len(s.Playlist) {
		return s.Playlist[s.CurrentDateIndex], true
	}
	return "", false
}

// Advance moves the cursor forward. It returns false and marks the session
// completed when the cursor is already on the last entry.
func (s *Session) Advance() bool {
	if s.CurrentDateIndex < len(s.Playlist)-1 {
		s.CurrentDateIndex++
		return true
	}
	s.IsCompleted = true
	return false
}

// RecordOutcome folds a resolved trade into the running aggregates.
func (s *Session) RecordOutcome(t *Trade) {
	s.TotalTrades++
	switch t.Outcome {
	case OutcomeWin:
		s.WinningTrades++
	case OutcomeLoss:
		s.LosingTrades++
	case OutcomeScratch:
		s.ScratchTrades++
	}
	s.TotalPnL += t.PnLPoints
}

// WinRate is the percentage of resolved trades that were wins.
func (s *Session) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}

func (s *Session) AveragePnL() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return s.TotalPnL / float64(s.TotalTrades)
}

func (s *Session) ProgressPercentage() float64 {
	if len(s.Playlist) == 0 {
		return 0
	}
	return float64(s.CurrentDateIndex) / float64(len(s.Playlist)) * 100
}
