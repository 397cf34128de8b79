package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

// Direction of a practice trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Outcome of a practice trade. Only pending may change, and only once.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeScratch Outcome = "scratch"
)

// Trade is a single practice trade owned by a session.
type Trade struct {
	ID        string    `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	SessionID string    `gorm:"column:session_id;type:uuid;not null;index" json:"session_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`

	EntryTimestamp time.Time  `gorm:"column:entry_timestamp;type:timestamptz;not null" json:"entry_timestamp"`
	ExitTimestamp  *time.Time `gorm:"column:exit_timestamp;type:timestamptz" json:"exit_timestamp"`

	Direction  Direction `gorm:"column:direction;type:varchar(10);not null" json:"direction"`
	EntryPrice float64   `gorm:"column:entry_price;not null" json:"entry_price"`
	StopLoss   float64   `gorm:"column:stop_loss;not null" json:"stop_loss"`
	TakeProfit float64   `gorm:"column:take_profit;not null" json:"take_profit"`
	ExitPrice  *float64  `gorm:"column:exit_price" json:"exit_price"`

	Outcome       Outcome `gorm:"column:outcome;type:varchar(10);not null;default:pending" json:"outcome"`
	PnLPoints     float64 `gorm:"column:pnl_points;not null;default:0" json:"pnl_points"`
	PnLPercentage float64 `gorm:"column:pnl_percentage;not null;default:0" json:"pnl_percentage"`

	IsAGrade    bool           `gorm:"column:is_a_grade;not null;default:false" json:"is_a_grade"`
	Notes       string         `gorm:"column:notes;type:text" json:"notes"`
	Annotations datatypes.JSON `gorm:"column:annotations;type:jsonb" json:"annotations"`
}

func (Trade) TableName() string {
	return "trades"
}

// IsResolved reports whether the outcome has been fixed.
func (t *Trade) IsResolved() bool {
	return t.Outcome != "" && t.Outcome != OutcomePending
}

// Risk is the entry-to-stop distance.
func (t *Trade) Risk() float64 {
	return math.Abs(t.EntryPrice - t.StopLoss)
}

// DurationMinutes is the time between entry and exit, if exited.
func (t *Trade) DurationMinutes() (float64, bool) {
	if t.ExitTimestamp == nil {
		return 0, false
	}
	return t.ExitTimestamp.Sub(t.EntryTimestamp).Minutes(), true
}

// RiskRewardRatio is the reward actually achieved in units of risk.
func (t *Trade) RiskRewardRatio() float64 {
	switch t.Outcome {
	case OutcomeWin:
		if r := t.Risk(); r > 0 {
			return math.Abs(t.PnLPoints / r)
		}
		return 0
	case OutcomeLoss:
		return -1
	default:
		return 0
	}
}
