// Package evaluator resolves practice trades by first touch of the stop or target
// over the bars that follow the entry.
package evaluator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/navid-fn/tradereplay/internal/models"
)

var (
	// ErrAlreadyResolved is returned when evaluating or applying to a terminal trade.
	ErrAlreadyResolved = errors.New("trade already resolved")

	// ErrInvalidTrade is returned for a trade with an unknown direction or bad prices.
	ErrInvalidTrade = errors.New("invalid trade")
)

// Rules fix the stop distance and the reward multiple for every trade.
type Rules struct {
	StopDistance   float64
	RewardMultiple float64
}

// Levels returns the stop and target for an entry.
func (r Rules) Levels(direction models.Direction, entry float64) (stop, target float64, err error) {
	reward := r.StopDistance * r.RewardMultiple
	switch direction {
	case models.DirectionLong:
		return entry - r.StopDistance, entry + reward, nil
	case models.DirectionShort:
		return entry + r.StopDistance, entry - reward, nil
	default:
		return 0, 0, fmt.Errorf("%w: direction %q", ErrInvalidTrade, direction)
	}
}

// TradeInput carries the caller supplied part of a new trade.
type TradeInput struct {
	SessionID   string
	EntryAt     time.Time
	Direction   models.Direction
	EntryPrice  float64
	IsAGrade    bool
	Notes       string
	Annotations datatypes.JSON
}

// NewTrade builds a pending trade with stop and target derived from the rules.
func NewTrade(in TradeInput, rules Rules) (*models.Trade, error) {
	dir := models.Direction(strings.ToLower(string(in.Direction)))
	if in.EntryPrice <= 0 {
		return nil, fmt.Errorf("%w: entry price %v", ErrInvalidTrade, in.EntryPrice)
	}
	stop, target, err := rules.Levels(dir, in.EntryPrice)
	if err != nil {
		return nil, err
	}
	return &models.Trade{
		ID:             uuid.NewString(),
		SessionID:      in.SessionID,
		EntryTimestamp: in.EntryAt.UTC(),
		Direction:      dir,
		EntryPrice:     in.EntryPrice,
		StopLoss:       stop,
		TakeProfit:     target,
		Outcome:        models.OutcomePending,
		IsAGrade:       in.IsAGrade,
		Notes:          in.Notes,
		Annotations:    in.Annotations,
	}, nil
}

// Resolution is the result of a scan. Exit fields are zero while Outcome is pending.
type Resolution struct {
	Outcome    models.Outcome
	ExitPrice  float64
	ExitAt     time.Time
	PnLPoints  float64
	PnLPercent float64
}

// Resolved reports whether the scan reached a terminal outcome.
func (r Resolution) Resolved() bool {
	return r.Outcome == models.OutcomeWin || r.Outcome == models.OutcomeLoss
}

// Evaluate scans bars strictly after the entry in ascending order. The stop is
// tested before the target on every bar, so a bar touching both is a loss.
// bars must be ascending by timestamp.
func Evaluate(trade *models.Trade, bars []models.Bar) (Resolution, error) {
	if trade.IsResolved() {
		return Resolution{}, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, trade.ID, trade.Outcome)
	}
	if !trade.Direction.Valid() {
		return Resolution{}, fmt.Errorf("%w: direction %q", ErrInvalidTrade, trade.Direction)
	}

	for _, b := range bars {
		if !b.Timestamp.After(trade.EntryTimestamp) {
			continue
		}
		switch trade.Direction {
		case models.DirectionLong:
			if b.Low <= trade.StopLoss {
				return exit(trade, models.OutcomeLoss, trade.StopLoss, b.Timestamp), nil
			}
			if b.High >= trade.TakeProfit {
				return exit(trade, models.OutcomeWin, trade.TakeProfit, b.Timestamp), nil
			}
		case models.DirectionShort:
			if b.High >= trade.StopLoss {
				return exit(trade, models.OutcomeLoss, trade.StopLoss, b.Timestamp), nil
			}
			if b.Low <= trade.TakeProfit {
				return exit(trade, models.OutcomeWin, trade.TakeProfit, b.Timestamp), nil
			}
		}
	}
	return Resolution{Outcome: models.OutcomePending}, nil
}

func exit(trade *models.Trade, outcome models.Outcome, price float64, at time.Time) Resolution {
	pnl := PnLPoints(trade.Direction, trade.EntryPrice, price)
	return Resolution{
		Outcome:    outcome,
		ExitPrice:  price,
		ExitAt:     at.UTC(),
		PnLPoints:  pnl,
		PnLPercent: PnLPercent(pnl, trade.Risk()),
	}
}

// PnLPoints is the exit-entry distance signed by direction.
func PnLPoints(direction models.Direction, entry, exit float64) float64 {
	if direction == models.DirectionShort {
		return entry - exit
	}
	return exit - entry
}

// PnLPercent expresses pnl as a percentage of the risk distance.
func PnLPercent(pnl, risk float64) float64 {
	if risk == 0 {
		return 0
	}
	return pnl / risk * 100
}

// Apply writes a terminal resolution onto the trade. Pending resolutions are a no-op.
func Apply(trade *models.Trade, res Resolution) error {
	if trade.IsResolved() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, trade.ID, trade.Outcome)
	}
	if res.Outcome == models.OutcomePending || res.Outcome == "" {
		return nil
	}
	setExit(trade, res.Outcome, res.ExitAt, res.ExitPrice, res.PnLPoints)
	return nil
}

// Scratch marks a pending trade as a user-declared break-even exit.
func Scratch(trade *models.Trade, at time.Time, price float64) error {
	if trade.IsResolved() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, trade.ID, trade.Outcome)
	}
	pnl := PnLPoints(trade.Direction, trade.EntryPrice, price)
	setExit(trade, models.OutcomeScratch, at.UTC(), price, pnl)
	return nil
}

func setExit(trade *models.Trade, outcome models.Outcome, at time.Time, price, pnl float64) {
	trade.Outcome = outcome
	trade.ExitTimestamp = &at
	trade.ExitPrice = &price
	trade.PnLPoints = pnl
	trade.PnLPercentage = PnLPercent(pnl, trade.Risk())
}
