package memory

import (
	"context"
	"sync"

	"github.com/sitepulse/sitepulse/internal/domain"
	"github.com/sitepulse/sitepulse/internal/repo"
)

// Store is the in-memory adapter: maps plus a bounded slice under one lock.
// It is the default backend and the one tests lean on.
type Store struct {
	mu         sync.RWMutex
	last       map[string]*domain.CheckResult
	metrics    map[string]*domain.SiteMetrics
	history    []*domain.CheckResult
	historyCap int
}

func New(historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = repo.DefaultHistoryCap
	}
	return &Store{
		last:       make(map[string]*domain.CheckResult),
		metrics:    make(map[string]*domain.SiteMetrics),
		history:    make([]*domain.CheckResult, 0, 128),
		historyCap: historyCap,
	}
}

func (m *Store) GetLast(ctx context.Context, url string) (*domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.last[url]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *Store) SetLast(ctx context.Context, r *domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.last[r.URL] = &cp
	return nil
}

func (m *Store) Snapshot(ctx context.Context) (map[string]domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.CheckResult, len(m.last))
	for url, r := range m.last {
		out[url] = *r
	}
	return out, nil
}

func (m *Store) ClearStatus(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = make(map[string]*domain.CheckResult)
	return nil
}

func (m *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.history = append(m.history, &cp)
	if over := len(m.history) - m.historyCap; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
	return nil
}

func (m *Store) History(ctx context.Context, url string, limit int) ([]domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = m.historyCap
	}
	out := make([]domain.CheckResult, 0, limit)
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if url != "" && m.history[i].URL != url {
			continue
		}
		out = append(out, *m.history[i])
	}
	return out, nil
}

func (m *Store) ClearHistory(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = m.history[:0]
	return nil
}

func (m *Store) GetMetrics(ctx context.Context, url string) (*domain.SiteMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.metrics[url]
	if !ok {
		return nil, nil
	}
	cp := *sm
	return &cp, nil
}

func (m *Store) PutMetrics(ctx context.Context, sm *domain.SiteMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sm
	m.metrics[sm.URL] = &cp
	return nil
}

func (m *Store) AllMetrics(ctx context.Context) (map[string]domain.SiteMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]domain.SiteMetrics, len(m.metrics))
	for url, sm := range m.metrics {
		out[url] = *sm
	}
	return out, nil
}

func (m *Store) ClearMetrics(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = make(map[string]*domain.SiteMetrics)
	return nil
}

func (m *Store) Close() error { return nil }
