package usecase

import (
	"context"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/logger"
)

// EventSink fans a lifecycle event out to the publisher and the audit log.
// Delivery is best effort: failures are logged and counted, never returned.
type EventSink struct {
	publisher repository.EventPublisher
	audit     repository.AuditLog
	metrics   repository.Metrics
	log       *logger.Logger
	timeout   time.Duration
}

// NewEventSink accepts nil publisher or audit when that sink is disabled.
func NewEventSink(publisher repository.EventPublisher, audit repository.AuditLog, metrics repository.Metrics, log *logger.Logger, timeout time.Duration) *EventSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EventSink{publisher: publisher, audit: audit, metrics: metrics, log: log, timeout: timeout}
}

// Emit is a no-op on a nil sink.
func (e *EventSink) Emit(ctx context.Context, ev models.SignalEvent) {
	if e == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if e.publisher != nil {
		pctx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.publisher.PublishSignalEvent(pctx, ev)
		cancel()
		if err != nil {
			e.metrics.RecordError("event_publish")
			e.log.Warn("events.publish failed",
				logger.String("signal_id", ev.Signal.ID),
				logger.String("type", string(ev.Type)),
				logger.Error(err))
		} else {
			e.metrics.RecordEventPublished("publisher")
		}
	}

	if e.audit != nil {
		actx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.audit.RecordEvent(actx, ev)
		cancel()
		if err != nil {
			e.metrics.RecordError("event_audit")
			e.log.Warn("events.audit failed",
				logger.String("signal_id", ev.Signal.ID),
				logger.String("type", string(ev.Type)),
				logger.Error(err))
		} else {
			e.metrics.RecordEventPublished("audit")
		}
	}
}
