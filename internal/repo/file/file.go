// Package file persists the monitor state as three independent JSON
// documents in a data directory: status.json (map url -> last result),
// metrics.json (map url -> aggregates) and history.json (bounded array).
// Each document is rewritten in full on every mutation; there is no
// schema version field, so format changes are the deployer's problem.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/sitepulse/sitepulse/internal/domain"
	"github.com/sitepulse/sitepulse/internal/repo"
)

const (
	statusFile  = "status.json"
	metricsFile = "metrics.json"
	historyFile = "history.json"
)

// Store keeps the working copy in memory and mirrors every mutation to
// disk. Whole-document writes are not transactional across the three
// files; a crash in between leaves them inconsistent, which the decision
// layer tolerates.
type Store struct {
	mu         sync.RWMutex
	dir        string
	last       map[string]domain.CheckResult
	metrics    map[string]domain.SiteMetrics
	history    []domain.CheckResult
	historyCap int
}

func Open(dir string, historyCap int) (*Store, error) {
	if historyCap <= 0 {
		historyCap = repo.DefaultHistoryCap
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		dir:        dir,
		last:       make(map[string]domain.CheckResult),
		metrics:    make(map[string]domain.SiteMetrics),
		historyCap: historyCap,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	if err := readDoc(filepath.Join(s.dir, statusFile), &s.last); err != nil {
		return err
	}
	if err := readDoc(filepath.Join(s.dir, metricsFile), &s.metrics); err != nil {
		return err
	}
	if err := readDoc(filepath.Join(s.dir, historyFile), &s.history); err != nil {
		return err
	}
	if over := len(s.history) - s.historyCap; over > 0 {
		s.history = s.history[over:]
	}
	return nil
}

func readDoc(path string, v any) error {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeDoc writes via a temp file and rename so readers never see a
// half-written document.
func (s *Store) writeDoc(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *Store) GetLast(ctx context.Context, url string) (*domain.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.last[url]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) SetLast(ctx context.Context, r *domain.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[r.URL] = *r
	return s.writeDoc(statusFile, s.last)
}

func (s *Store) Snapshot(ctx context.Context) (map[string]domain.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.CheckResult, len(s.last))
	for url, r := range s.last {
		out[url] = r
	}
	return out, nil
}

func (s *Store) ClearStatus(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = make(map[string]domain.CheckResult)
	return s.writeDoc(statusFile, s.last)
}

func (s *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *r)
	if over := len(s.history) - s.historyCap; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	return s.writeDoc(historyFile, s.history)
}

func (s *Store) History(ctx context.Context, url string, limit int) ([]domain.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = s.historyCap
	}
	out := make([]domain.CheckResult, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if url != "" && s.history[i].URL != url {
			continue
		}
		out = append(out, s.history[i])
	}
	return out, nil
}

func (s *Store) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	return s.writeDoc(historyFile, []domain.CheckResult{})
}

func (s *Store) GetMetrics(ctx context.Context, url string) (*domain.SiteMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[url]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) PutMetrics(ctx context.Context, m *domain.SiteMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[m.URL] = *m
	return s.writeDoc(metricsFile, s.metrics)
}

func (s *Store) AllMetrics(ctx context.Context) (map[string]domain.SiteMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.SiteMetrics, len(s.metrics))
	for url, m := range s.metrics {
		out[url] = m
	}
	return out, nil
}

func (s *Store) ClearMetrics(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = make(map[string]domain.SiteMetrics)
	return s.writeDoc(metricsFile, s.metrics)
}

func (s *Store) Close() error { return nil }
