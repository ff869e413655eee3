package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the producer side: handlers enqueue work, jobs consume it.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Job consumes messages of one Type. Handle receives the raw payload and
// should decode it with ParsePayload.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

// QueueConfig tunes workers and retries. Zero fields fall back to defaults.
type QueueConfig struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
	// RetryPollInterval is how often due retries move back to the main list.
	RetryPollInterval time.Duration
	// PopTimeout bounds each BRPOP so workers notice shutdown.
	PopTimeout time.Duration
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParsePayload decodes a job payload into T. Payloads already of type T are
// returned as is; raw JSON and decoded maps go through encoding/json.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case map[string]interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("queue: re-encode payload: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("queue: unsupported payload type %T", payload)
	}

	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("queue: decode payload: %w", err)
	}
	return out, nil
}
