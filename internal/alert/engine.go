// Package alert is the decision layer between "a check happened" and "a
// human is notified". It owns the transition state machine and drives the
// persistence, metrics and rate-limiter collaborators it is composed with
// at startup.
package alert

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sitepulse/sitepulse/internal/domain"
	"github.com/sitepulse/sitepulse/internal/metrics"
	"github.com/sitepulse/sitepulse/internal/notify"
	"github.com/sitepulse/sitepulse/internal/ratelimit"
	"github.com/sitepulse/sitepulse/internal/repo"
)

// maxHistoryLimit caps what a single history query may ask for.
const maxHistoryLimit = 1000

type Engine struct {
	log      *zap.Logger
	status   repo.StatusStore
	history  repo.HistoryStore
	metrics  *metrics.Engine
	limiter  *ratelimit.Limiter
	notifier notify.Notifier

	// Serializes overlapping checks for the same URL so the
	// read-compare-write cycle cannot lose updates.
	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

func NewEngine(
	log *zap.Logger,
	status repo.StatusStore,
	history repo.HistoryStore,
	m *metrics.Engine,
	limiter *ratelimit.Limiter,
	notifier notify.Notifier,
) *Engine {
	return &Engine{
		log:      log,
		status:   status,
		history:  history,
		metrics:  m,
		limiter:  limiter,
		notifier: notifier,
		keys:     make(map[string]*sync.Mutex),
	}
}

func (e *Engine) urlLock(url string) *sync.Mutex {
	e.keysMu.Lock()
	defer e.keysMu.Unlock()
	mu := e.keys[url]
	if mu == nil {
		mu = &sync.Mutex{}
		e.keys[url] = mu
	}
	return mu
}

// Submit is the single entry point for a fresh check result.
//
// State machine per URL:
//   - no stored record: persist and emit an initial notification, the
//     rate limiter is never consulted;
//   - same status as stored: persist and emit a routine notification,
//     again without the limiter;
//   - transition: one limiter token buys a status-change notification and
//     the persist. A denied token emits a suppressed notification and
//     persists NOTHING, so the stored record keeps the pre-transition
//     status and the next flap is still detected as a transition.
//
// A failure reading the previous record aborts the whole check: no
// mutation, no notification. Write failures after the decision are logged
// and swallowed; the next successful check resynchronizes.
func (e *Engine) Submit(ctx context.Context, r *domain.CheckResult) error {
	if err := r.Validate(); err != nil {
		return err
	}

	mu := e.urlLock(r.URL)
	mu.Lock()
	defer mu.Unlock()

	prev, err := e.status.GetLast(ctx, r.URL)
	if err != nil {
		return fmt.Errorf("read previous status for %s: %w", r.URL, err)
	}

	switch {
	case prev == nil:
		e.persist(ctx, r)
		e.emit(ctx, notify.NewNotification(notify.KindInitial, r))

	case prev.Status == r.Status:
		e.persist(ctx, r)
		e.emit(ctx, notify.NewNotification(notify.KindRoutine, r))

	default:
		if e.limiter.Consume(r.URL) {
			n := notify.NewNotification(notify.KindStatusChange, r)
			n.Previous = prev.Status
			e.emit(ctx, n)
			e.persist(ctx, r)
		} else {
			n := notify.NewNotification(notify.KindSuppressed, r)
			n.Previous = prev.Status
			n.RetryAfter = e.limiter.NextToken(r.URL)
			e.emit(ctx, n)
			// Stored record intentionally keeps the stale status.
		}
	}
	return nil
}

// persist writes the accepted result into all three stores. Each write is
// best-effort: a failure is logged but does not undo the decision already
// made or the notification already sent.
func (e *Engine) persist(ctx context.Context, r *domain.CheckResult) {
	if err := e.status.SetLast(ctx, r); err != nil {
		e.log.Warn("persist_status_error", zap.String("url", r.URL), zap.Error(err))
	}
	if err := e.history.Append(ctx, r); err != nil {
		e.log.Warn("persist_history_error", zap.String("url", r.URL), zap.Error(err))
	}
	if err := e.metrics.RecordCheck(ctx, r); err != nil {
		e.log.Warn("persist_metrics_error", zap.String("url", r.URL), zap.Error(err))
	}
}

func (e *Engine) emit(ctx context.Context, n notify.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Warn("notify_error",
			zap.String("url", n.URL),
			zap.String("kind", string(n.Kind)),
			zap.Error(err),
		)
	}
}

// ---- query surface for the API/reporting layers ----

func (e *Engine) Snapshot(ctx context.Context) (map[string]domain.CheckResult, error) {
	return e.status.Snapshot(ctx)
}

func (e *Engine) Previous(ctx context.Context, url string) (*domain.CheckResult, error) {
	return e.status.GetLast(ctx, url)
}

func (e *Engine) SiteMetrics(ctx context.Context, url string) (*domain.SiteMetrics, error) {
	return e.metrics.SiteMetrics(ctx, url)
}

func (e *Engine) AllMetrics(ctx context.Context) (map[string]domain.SiteMetrics, error) {
	return e.metrics.AllMetrics(ctx)
}

func (e *Engine) SystemMetrics(ctx context.Context) (domain.SystemMetrics, error) {
	return e.metrics.SystemSnapshot(ctx)
}

func (e *Engine) WeightedSystemMetrics(ctx context.Context) (domain.SystemMetrics, error) {
	return e.metrics.WeightedSystemSnapshot(ctx)
}

func (e *Engine) History(ctx context.Context, url string, limit int) ([]domain.CheckResult, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return e.history.History(ctx, url, limit)
}

// ClearAll resets the three persistent stores. Rate-limiter buckets are
// process state, not persistence, and are left alone.
func (e *Engine) ClearAll(ctx context.Context) error {
	if err := e.status.ClearStatus(ctx); err != nil {
		return fmt.Errorf("clear status: %w", err)
	}
	if err := e.history.ClearHistory(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if err := e.metrics.Clear(ctx); err != nil {
		return fmt.Errorf("clear metrics: %w", err)
	}
	return nil
}
