package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CHAuditLog appends every signal event, with the full signal as JSON, to a
// ClickHouse table for backtesting.
type CHAuditLog struct {
	db    *sql.DB
	table string
}

func NewCHAuditLog(db *sql.DB, table string) *CHAuditLog {
	if table == "" {
		table = "signal_events"
	}
	return &CHAuditLog{db: db, table: table}
}

func (s *CHAuditLog) RecordEvent(ctx context.Context, ev models.SignalEvent) error {
	payload, err := json.Marshal(ev.Signal)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	var from string
	if ev.Type != models.EventCreated {
		from = string(models.StatusActive)
	}
	var price float64
	if ev.Price != nil {
		price = ev.Price.InexactFloat64()
	}
	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	q := fmt.Sprintf(`INSERT INTO %s (event_id, signal_id, symbol, kind, from_status, to_status, price, payload, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		uuid.NewString(),
		ev.Signal.ID,
		ev.Signal.Symbol,
		string(ev.Type),
		from,
		string(ev.Signal.Status),
		price,
		string(payload),
		at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit insert %s: %w", ev.Signal.ID, err)
	}
	return nil
}

// History returns the events of one signal, oldest first.
func (s *CHAuditLog) History(ctx context.Context, signalID string) ([]models.SignalEvent, error) {
	q := fmt.Sprintf("SELECT kind, price, payload, occurred_at FROM %s WHERE signal_id = ? ORDER BY occurred_at ASC", s.table)
	rows, err := s.db.QueryContext(ctx, q, signalID)
	if err != nil {
		return nil, fmt.Errorf("audit history: %w", err)
	}
	defer rows.Close()

	var out []models.SignalEvent
	for rows.Next() {
		var (
			kind, payload string
			price         float64
			ev            models.SignalEvent
		)
		if err := rows.Scan(&kind, &price, &payload, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &ev.Signal); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		ev.Type = models.EventType(kind)
		if kind != string(models.EventCreated) {
			p := decimal.NewFromFloat(price)
			ev.Price = &p
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

var _ domrepo.AuditLog = (*CHAuditLog)(nil)
