package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/navid-fn/tradereplay/internal/models"
)

// MemoryRepository is an in-process SessionRepository used by tests and SESSION_STORE=memory.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	trades   map[string]models.Trade
	order    map[string][]string // session id -> trade ids in creation order
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]models.Session),
		trades:   make(map[string]models.Trade),
		order:    make(map[string][]string),
		now:      time.Now,
	}
}

func (r *MemoryRepository) CreateSession(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	r.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (r *MemoryRepository) GetSession(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s = cloneSession(s)
	return &s, nil
}

func (r *MemoryRepository) UpdateSession(_ context.Context, id string, fn SessionFunc) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s := cloneSession(stored)
	if err := fn(&s); err != nil {
		return nil, err
	}
	s.UpdatedAt = r.now().UTC()
	r.sessions[id] = cloneSession(s)
	return &s, nil
}

func (r *MemoryRepository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	for _, tid := range r.order[id] {
		delete(r.trades, tid)
	}
	delete(r.order, id)
	delete(r.sessions, id)
	return nil
}

func (r *MemoryRepository) CreateTrade(_ context.Context, t *models.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[t.SessionID]; !ok {
		return ErrNotFound
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.now().UTC()
	}
	r.trades[t.ID] = *t
	r.order[t.SessionID] = append(r.order[t.SessionID], t.ID)
	return nil
}

func (r *MemoryRepository) GetTrade(_ context.Context, id string) (*models.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) ListTrades(_ context.Context, sessionID string) ([]models.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.order[sessionID]
	out := make([]models.Trade, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.trades[id])
	}
	slices.SortStableFunc(out, func(a, b models.Trade) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) UpdateTrade(_ context.Context, tradeID string, fn TradeFunc) (*models.Session, *models.Trade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trades[tradeID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	stored, ok := r.sessions[t.SessionID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	s := cloneSession(stored)
	if err := fn(&s, &t); err != nil {
		return nil, nil, err
	}
	s.UpdatedAt = r.now().UTC()
	r.trades[tradeID] = t
	r.sessions[s.ID] = cloneSession(s)
	return &s, &t, nil
}

func cloneSession(s models.Session) models.Session {
	s.Playlist = slices.Clone(s.Playlist)
	s.Trades = nil
	return s
}
