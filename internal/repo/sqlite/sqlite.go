// Package sqlite backs the monitor with an embedded SQLite database
// (cgo-free modernc driver). Unlike the JSON document store it gives the
// three stores real per-row durability.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sitepulse/sitepulse/internal/domain"
	"github.com/sitepulse/sitepulse/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	db         *sql.DB
	historyCap int
}

// Open opens (or creates) the database file and runs migrations.
func Open(ctx context.Context, path string, historyCap int) (*Store, error) {
	if historyCap <= 0 {
		historyCap = repo.DefaultHistoryCap
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db, historyCap: historyCap}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS last_status (
	url          TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	http_status  INTEGER NOT NULL,
	latency_ms   REAL NOT NULL,
	reason       TEXT NOT NULL,
	checked_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	url          TEXT NOT NULL,
	status       TEXT NOT NULL,
	http_status  INTEGER NOT NULL,
	latency_ms   REAL NOT NULL,
	reason       TEXT NOT NULL,
	checked_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_url_id ON history (url, id DESC);

CREATE TABLE IF NOT EXISTS site_metrics (
	url                  TEXT PRIMARY KEY,
	total_checks         INTEGER NOT NULL,
	successful_checks    INTEGER NOT NULL,
	consecutive_failures INTEGER NOT NULL,
	avg_latency_ms       REAL NOT NULL,
	min_latency_ms       REAL NOT NULL,
	max_latency_ms       REAL NOT NULL,
	uptime_percent       REAL NOT NULL,
	last_up_at           TEXT,
	last_down_at         TEXT
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetLast(ctx context.Context, url string) (*domain.CheckResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, status, http_status, latency_ms, reason, checked_at
		 FROM last_status WHERE url = ?`, url)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last: %w", err)
	}
	return r, nil
}

func (s *Store) SetLast(ctx context.Context, r *domain.CheckResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO last_status (url, status, http_status, latency_ms, reason, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   status=excluded.status, http_status=excluded.http_status,
		   latency_ms=excluded.latency_ms, reason=excluded.reason,
		   checked_at=excluded.checked_at`,
		r.URL, string(r.Status), r.HTTPStatus, r.LatencyMS, r.Reason,
		r.CheckedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set last: %w", err)
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (map[string]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, status, http_status, latency_ms, reason, checked_at FROM last_status`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.CheckResult)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		out[r.URL] = *r
	}
	return out, rows.Err()
}

func (s *Store) ClearStatus(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM last_status`)
	return err
}

func (s *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (url, status, http_status, latency_ms, reason, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.URL, string(r.Status), r.HTTPStatus, r.LatencyMS, r.Reason,
		r.CheckedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	// Evict oldest rows above the global cap.
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM history WHERE id <= (
		   SELECT id FROM history ORDER BY id DESC LIMIT 1 OFFSET ?
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
	q := `SELECT url, status, http_status, latency_ms, reason, checked_at
	      FROM history`
	args := []any{}
	if url != "" {
		q += ` WHERE url = ?`
		args = append(args, url)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CheckResult, 0, limit)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) ClearHistory(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	return err
}

func (s *Store) GetMetrics(ctx context.Context, url string) (*domain.SiteMetrics, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, total_checks, successful_checks, consecutive_failures,
		        avg_latency_ms, min_latency_ms, max_latency_ms, uptime_percent,
		        last_up_at, last_down_at
		 FROM site_metrics WHERE url = ?`, url)
	m, err := scanMetrics(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	return m, nil
}

func (s *Store) PutMetrics(ctx context.Context, m *domain.SiteMetrics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO site_metrics (url, total_checks, successful_checks, consecutive_failures,
		   avg_latency_ms, min_latency_ms, max_latency_ms, uptime_percent, last_up_at, last_down_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET
		   total_checks=excluded.total_checks,
		   successful_checks=excluded.successful_checks,
		   consecutive_failures=excluded.consecutive_failures,
		   avg_latency_ms=excluded.avg_latency_ms,
		   min_latency_ms=excluded.min_latency_ms,
		   max_latency_ms=excluded.max_latency_ms,
		   uptime_percent=excluded.uptime_percent,
		   last_up_at=excluded.last_up_at,
		   last_down_at=excluded.last_down_at`,
		m.URL, m.TotalChecks, m.SuccessfulChecks, m.ConsecutiveFailures,
		m.AvgLatencyMS, m.MinLatencyMS, m.MaxLatencyMS, m.UptimePercent,
		timePtr(m.LastUpAt), timePtr(m.LastDownAt))
	if err != nil {
		return fmt.Errorf("put metrics: %w", err)
	}
	return nil
}

func (s *Store) AllMetrics(ctx context.Context) (map[string]domain.SiteMetrics, error) {
	rows, err := s.db.QueryContext(ctx,
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
		m, err := scanMetrics(rows)
		if err != nil {
			return nil, fmt.Errorf("metrics scan: %w", err)
		}
		out[m.URL] = *m
	}
	return out, rows.Err()
}

func (s *Store) ClearMetrics(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM site_metrics`)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (*domain.CheckResult, error) {
	var r domain.CheckResult
	var status, checkedAt string
	if err := sc.Scan(&r.URL, &status, &r.HTTPStatus, &r.LatencyMS, &r.Reason, &checkedAt); err != nil {
		return nil, err
	}
	r.Status = domain.Status(status)
	t, err := time.Parse(time.RFC3339Nano, checkedAt)
	if err != nil {
		return nil, err
	}
	r.CheckedAt = t
	return &r, nil
}

func scanMetrics(sc scanner) (*domain.SiteMetrics, error) {
	var m domain.SiteMetrics
	var up, down sql.NullString
	if err := sc.Scan(&m.URL, &m.TotalChecks, &m.SuccessfulChecks, &m.ConsecutiveFailures,
		&m.AvgLatencyMS, &m.MinLatencyMS, &m.MaxLatencyMS, &m.UptimePercent, &up, &down); err != nil {
		return nil, err
	}
	var err error
	if m.LastUpAt, err = parseNullTime(up); err != nil {
		return nil, err
	}
	if m.LastDownAt, err = parseNullTime(down); err != nil {
		return nil, err
	}
	return &m, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
