package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a trade idea.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Status is the lifecycle state of a signal. COMPLETED and CANCELLED are terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// TimeframeClass is the expected holding horizon of a signal.
type TimeframeClass string

const (
	TimeframeDay    TimeframeClass = "DAY"
	TimeframeShort  TimeframeClass = "SHORT"
	TimeframeMedium TimeframeClass = "MEDIUM"
	TimeframeLong   TimeframeClass = "LONG"
)

// Signal is a trade recommendation tracked until it reaches target or stop.
// Everything except Status is fixed at creation.
type Signal struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Direction       Direction       `json:"direction"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	TargetPrice     decimal.Decimal `json:"target_price"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	Status          Status          `json:"status"`
	SuccessRate     float64         `json:"success_rate"`
	DirectionScore  float64         `json:"direction_score"`
	TimeframeClass  TimeframeClass  `json:"timeframe_class"`
	RiskRewardRatio decimal.Decimal `json:"risk_reward_ratio"`
	CreatedAt       time.Time       `json:"created_at"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
}

// LevelsOrdered reports whether stop, entry and target sit on the correct sides
// of each other for the signal's direction.
func (s *Signal) LevelsOrdered() bool {
	switch s.Direction {
	case DirectionBuy:
		return s.StopLossPrice.LessThan(s.EntryPrice) && s.EntryPrice.LessThan(s.TargetPrice)
	case DirectionSell:
		return s.TargetPrice.LessThan(s.EntryPrice) && s.EntryPrice.LessThan(s.StopLossPrice)
	default:
		return false
	}
}

// EventType classifies a lifecycle change.
type EventType string

const (
	EventCreated   EventType = "created"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
)

// EventForStatus maps a status reached by a transition to its event type.
func EventForStatus(s Status) EventType {
	switch s {
	case StatusCompleted:
		return EventCompleted
	case StatusCancelled:
		return EventCancelled
	default:
		return EventCreated
	}
}

// SignalEvent is emitted on creation and on every terminal transition.
type SignalEvent struct {
	Type       EventType        `json:"type"`
	Signal     Signal           `json:"signal"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
