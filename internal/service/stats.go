package service

import (
	"context"

	"github.com/navid-fn/tradereplay/internal/models"
)

// DirectionStats aggregates resolved trades of one direction.
type DirectionStats struct {
	Total   int     `json:"total"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
	PnL     float64 `json:"pnl"`
}

// AGradeStats aggregates resolved trades flagged as A-grade setups.
type AGradeStats struct {
	Total   int     `json:"total"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
}

// Stats is the session report.
type Stats struct {
	Session      SessionView                         `json:"session"`
	ByOutcome    map[models.Outcome]int              `json:"by_outcome"`
	ByDirection  map[models.Direction]DirectionStats `json:"by_direction"`
	AGrade       AGradeStats                         `json:"a_grade"`
	BestTrade    *float64                            `json:"best_trade"`
	WorstTrade   *float64                            `json:"worst_trade"`
	RecentTrades []TradeView                         `json:"recent_trades"`
}

// SessionStats reports aggregates over the session's resolved trades.
// Pending trades only appear in ByOutcome and RecentTrades.
func (s *Service) SessionStats(ctx context.Context, id string) (Stats, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	trades, err := s.repo.ListTrades(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	return buildStats(session, trades, s.cfg.RecentTrades), nil
}

func buildStats(session *models.Session, trades []models.Trade, recent int) Stats {
	st := Stats{
		Session: newSessionView(session),
		ByOutcome: map[models.Outcome]int{
			models.OutcomeWin:     0,
			models.OutcomeLoss:    0,
			models.OutcomeScratch: 0,
			models.OutcomePending: 0,
		},
		ByDirection: map[models.Direction]DirectionStats{
			models.DirectionLong:  {},
			models.DirectionShort: {},
		},
	}

	var best, worst float64
	resolved := 0
	for i := range trades {
		t := &trades[i]
		outcome := t.Outcome
		if outcome == "" {
			outcome = models.OutcomePending
		}
		st.ByOutcome[outcome]++
		if !t.IsResolved() {
			continue
		}

		d := st.ByDirection[t.Direction]
		d.Total++
		d.PnL += t.PnLPoints
		switch t.Outcome {
		case models.OutcomeWin:
			d.Wins++
		case models.OutcomeLoss:
			d.Losses++
		}
		st.ByDirection[t.Direction] = d

		if t.IsAGrade {
			st.AGrade.Total++
			if t.Outcome == models.OutcomeWin {
				st.AGrade.Wins++
			}
		}

		if resolved == 0 || t.PnLPoints > best {
			best = t.PnLPoints
		}
		if resolved == 0 || t.PnLPoints < worst {
			worst = t.PnLPoints
		}
		resolved++
	}

	for dir, d := range st.ByDirection {
		d.WinRate = round2(percent(d.Wins, d.Total))
		d.PnL = round2(d.PnL)
		st.ByDirection[dir] = d
	}
	st.AGrade.WinRate = round2(percent(st.AGrade.Wins, st.AGrade.Total))
	if resolved > 0 {
		b, w := round2(best), round2(worst)
		st.BestTrade, st.WorstTrade = &b, &w
	}

	// the last `recent` trades, oldest first
	latest := trades
	if len(latest) > recent {
		latest = latest[len(latest)-recent:]
	}
	st.RecentTrades = newTradeViews(latest)
	return st
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
