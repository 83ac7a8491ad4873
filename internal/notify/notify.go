package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/sitepulse/sitepulse/internal/domain"
)

// Kind classifies what the decision engine is telling the operator.
type Kind string

const (
	// KindInitial is the first observation of a URL.
	KindInitial Kind = "initial"
	// KindRoutine is a check whose status matched the stored one.
	KindRoutine Kind = "routine"
	// KindStatusChange is a transition that passed the rate limiter.
	KindStatusChange Kind = "status_change"
	// KindSuppressed is a transition the rate limiter swallowed.
	KindSuppressed Kind = "suppressed"
)

// Notification is the single event type the decision engine emits.
type Notification struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	URL        string        `json:"url"`
	Status     domain.Status `json:"status"`
	Previous   domain.Status `json:"previous,omitempty"` // set for status_change and suppressed
	HTTPStatus int           `json:"http_status,omitempty"`
	LatencyMS  float64       `json:"latency_ms"`
	Reason     string        `json:"reason,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"` // set for suppressed
}

// NewNotification stamps a fresh ID onto an event built from a result.
func NewNotification(kind Kind, r *domain.CheckResult) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Kind:       kind,
		URL:        r.URL,
		Status:     r.Status,
		HTTPStatus: r.HTTPStatus,
		LatencyMS:  r.LatencyMS,
		Reason:     r.Reason,
		CheckedAt:  r.CheckedAt,
	}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi fans out to several sinks; every sink sees the event and the
// errors are combined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		errs = multierr.Append(errs, sink.Notify(ctx, n))
	}
	return errs
}
