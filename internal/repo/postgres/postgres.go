package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sitepulse/sitepulse/internal/domain"
	"github.com/sitepulse/sitepulse/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store backs the monitor with Postgres for deployments that already run
// one. Same contract as the other adapters: no transaction spans the
// three tables for a single check.
type Store struct {
	pool       *pgxpool.Pool
	log        *zap.Logger
	historyCap int
}

func New(ctx context.Context, dsn string, historyCap int, log *zap.Logger) (*Store, error) {
	if historyCap <= 0 {
		historyCap = repo.DefaultHistoryCap
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool, log: log, historyCap: historyCap}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS last_status (
	url          TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	http_status  INTEGER NOT NULL,
	latency_ms   DOUBLE PRECISION NOT NULL,
	reason       TEXT NOT NULL,
	checked_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id           BIGSERIAL PRIMARY KEY,
	url          TEXT NOT NULL,
	status       TEXT NOT NULL,
	http_status  INTEGER NOT NULL,
	latency_ms   DOUBLE PRECISION NOT NULL,
	reason       TEXT NOT NULL,
	checked_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_url_id ON history (url, id DESC);

CREATE TABLE IF NOT EXISTS site_metrics (
	url                  TEXT PRIMARY KEY,
	total_checks         BIGINT NOT NULL,
	successful_checks    BIGINT NOT NULL,
	consecutive_failures BIGINT NOT NULL,
	avg_latency_ms       DOUBLE PRECISION NOT NULL,
	min_latency_ms       DOUBLE PRECISION NOT NULL,
	max_latency_ms       DOUBLE PRECISION NOT NULL,
	uptime_percent       DOUBLE PRECISION NOT NULL,
	last_up_at           TIMESTAMPTZ,
	last_down_at         TIMESTAMPTZ
)`)
	return err
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) GetLast(ctx context.Context, url string) (*domain.CheckResult, error) {
	var r domain.CheckResult
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT url, status, http_status, latency_ms, reason, checked_at
		   FROM last_status WHERE url = $1`, url).
		Scan(&r.URL, &status, &r.HTTPStatus, &r.LatencyMS, &r.Reason, &r.CheckedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last: %w", err)
	}
	r.Status = domain.Status(status)
	return &r, nil
}

func (s *Store) SetLast(ctx context.Context, r *domain.CheckResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO last_status (url, status, http_status, latency_ms, reason, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (url) DO UPDATE SET
		   status = EXCLUDED.status, http_status = EXCLUDED.http_status,
		   latency_ms = EXCLUDED.latency_ms, reason = EXCLUDED.reason,
		   checked_at = EXCLUDED.checked_at`,
		r.URL, string(r.Status), r.HTTPStatus, r.LatencyMS, r.Reason, r.CheckedAt)
	if err != nil {
		return fmt.Errorf("set last: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (map[string]domain.CheckResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, status, http_status, latency_ms, reason, checked_at FROM last_status`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.CheckResult)
	for rows.Next() {
		var r domain.CheckResult
		var status string
		if err := rows.Scan(&r.URL, &status, &r.HTTPStatus, &r.LatencyMS, &r.Reason, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		r.Status = domain.Status(status)
		out[r.URL] = r
	}
	return out, rows.Err()
}

func (s *Store) ClearStatus(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM last_status`)
	return err
}

func (s *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO history (url, status, http_status, latency_ms, reason, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.URL, string(r.Status), r.HTTPStatus, r.LatencyMS, r.Reason, r.CheckedAt)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`DELETE FROM history WHERE id <= (
		   SELECT id FROM history ORDER BY id DESC LIMIT 1 OFFSET $1
		 )`, s.historyCap)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, url string, limit int) ([]domain.CheckResult, error) {
	if limit <= 0 {
		limit = s.historyCap
	}
	q := `SELECT url, status, http_status, latency_ms, reason, checked_at FROM history`
	args := []any{}
	if url != "" {
		q += ` WHERE url = $1 ORDER BY id DESC LIMIT $2`
		args = append(args, url, limit)
	} else {
		q += ` ORDER BY id DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CheckResult, 0, limit)
	for rows.Next() {
		var r domain.CheckResult
		var status string
		if err := rows.Scan(&r.URL, &status, &r.HTTPStatus, &r.LatencyMS, &r.Reason, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		r.Status = domain.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ClearHistory(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM history`)
	return err
}

func (s *Store) GetMetrics(ctx context.Context, url string) (*domain.SiteMetrics, error) {
	var m domain.SiteMetrics
	err := s.pool.QueryRow(ctx,
		`SELECT url, total_checks, successful_checks, consecutive_failures,
		        avg_latency_ms, min_latency_ms, max_latency_ms, uptime_percent,
		        last_up_at, last_down_at
		   FROM site_metrics WHERE url = $1`, url).
		Scan(&m.URL, &m.TotalChecks, &m.SuccessfulChecks, &m.ConsecutiveFailures,
			&m.AvgLatencyMS, &m.MinLatencyMS, &m.MaxLatencyMS, &m.UptimePercent,
			&m.LastUpAt, &m.LastDownAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	return &m, nil
}

func (s *Store) PutMetrics(ctx context.Context, m *domain.SiteMetrics) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO site_metrics (url, total_checks, successful_checks, consecutive_failures,
		   avg_latency_ms, min_latency_ms, max_latency_ms, uptime_percent, last_up_at, last_down_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (url) DO UPDATE SET
		   total_checks = EXCLUDED.total_checks,
		   successful_checks = EXCLUDED.successful_checks,
		   consecutive_failures = EXCLUDED.consecutive_failures,
		   avg_latency_ms = EXCLUDED.avg_latency_ms,
		   min_latency_ms = EXCLUDED.min_latency_ms,
		   max_latency_ms = EXCLUDED.max_latency_ms,
		   uptime_percent = EXCLUDED.uptime_percent,
		   last_up_at = EXCLUDED.last_up_at,
		   last_down_at = EXCLUDED.last_down_at`,
		m.URL, m.TotalChecks, m.SuccessfulChecks, m.ConsecutiveFailures,
		m.AvgLatencyMS, m.MinLatencyMS, m.MaxLatencyMS, m.UptimePercent,
		m.LastUpAt, m.LastDownAt)
	if err != nil {
		return fmt.Errorf("put metrics: %w", err)
	}
	return nil
}

func (s *Store) AllMetrics(ctx context.Context) (map[string]domain.SiteMetrics, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, total_checks, successful_checks, consecutive_failures,
		        avg_latency_ms, min_latency_ms, max_latency_ms, uptime_percent,
		        last_up_at, last_down_at
		   FROM site_metrics`)
	if err != nil {
		return nil, fmt.Errorf("all metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.SiteMetrics)
	for rows.Next() {
		var m domain.SiteMetrics
		if err := rows.Scan(&m.URL, &m.TotalChecks, &m.SuccessfulChecks, &m.ConsecutiveFailures,
			&m.AvgLatencyMS, &m.MinLatencyMS, &m.MaxLatencyMS, &m.UptimePercent,
			&m.LastUpAt, &m.LastDownAt); err != nil {
			return nil, fmt.Errorf("metrics scan: %w", err)
		}
		out[m.URL] = m
	}
	return out, rows.Err()
}

func (s *Store) ClearMetrics(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM site_metrics`)
	return err
}
