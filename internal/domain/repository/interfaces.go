package repository

import (
	"context"

	"SignalDesk/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalStore persists signals. The core never deletes from it.
type SignalStore interface {
	// Query returns signals in the given status, or all signals when status is nil.
	Query(ctx context.Context, status *models.Status) ([]models.Signal, error)
	Get(ctx context.Context, id string) (models.Signal, error)
	// Insert assigns a fresh id to s and stores it.
	Insert(ctx context.Context, s *models.Signal) error
	// UpdateStatus fails with ErrConflict when the stored status is already terminal
	// and with ErrNotFound for unknown ids.
	UpdateStatus(ctx context.Context, id string, status models.Status) error
	Health(ctx context.Context) error
}

type EventPublisher interface {
	PublishSignalEvent(ctx context.Context, ev models.SignalEvent) error
	Close() error
}

// AuditLog keeps every lifecycle event with full signal fields for backtesting.
type AuditLog interface {
	RecordEvent(ctx context.Context, ev models.SignalEvent) error
}

type Metrics interface {
	RecordSignalCreated(symbol string, direction models.Direction)
	RecordTransition(to models.Status)
	RecordPoolSize(active, target int)
	RecordEventPublished(sink string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
