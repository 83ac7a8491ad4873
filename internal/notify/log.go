package notify

import (
	"context"

	"go.uber.org/zap"
)

// Logger writes notifications to the structured log. Routine checks go
// out at debug so a healthy fleet does not flood the log file.
type Logger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Notify(ctx context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("id", n.ID),
		zap.String("url", n.URL),
		zap.String("status", string(n.Status)),
		zap.Int("http_status", n.HTTPStatus),
		zap.Float64("latency_ms", n.LatencyMS),
		zap.String("reason", n.Reason),
		zap.Time("checked_at", n.CheckedAt),
	}

	switch n.Kind {
	case KindStatusChange:
		fields = append(fields, zap.String("previous", string(n.Previous)))
		l.log.Warn("status_change", fields...)
	case KindSuppressed:
		fields = append(fields,
			zap.String("previous", string(n.Previous)),
			zap.Duration("retry_after", n.RetryAfter),
		)
		l.log.Info("alert_suppressed", fields...)
	case KindInitial:
		l.log.Info("initial_observation", fields...)
	default:
		l.log.Debug("routine_check", fields...)
	}
	return nil
}
