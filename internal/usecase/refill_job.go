package usecase

import (
	"context"
	"fmt"

	"SignalDesk/pkg/logger"
	"SignalDesk/pkg/queue"
)

// RefillJobType is the queue message type for asynchronous pool refills.
const RefillJobType = "signals.refill"

type RefillPayload struct {
	Count int `json:"count"`
}

// Refiller adds count signals to the pool.
type Refiller interface {
	Refill(ctx context.Context, count int) (ReplacementResult, error)
}

// RefillJob runs queued refill requests.
type RefillJob struct {
	pool Refiller
	log  *logger.Logger
}

func NewRefillJob(pool Refiller, log *logger.Logger) *RefillJob {
	return &RefillJob{pool: pool, log: log}
}

func (j *RefillJob) Name() string { return "refill signal pool" }
func (j *RefillJob) Type() string { return RefillJobType }

func (j *RefillJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RefillPayload](payload)
	if err != nil {
		return err
	}
	if p.Count <= 0 {
		return fmt.Errorf("refill count must be positive, got %d", p.Count)
	}
	res, err := j.pool.Refill(ctx, p.Count)
	if err != nil {
		return err
	}
	j.log.Info("refill.job done",
		logger.Int("requested", p.Count),
		logger.Int("added", len(res.Selected)),
		logger.Int("shortfall", res.Shortfall))
	return nil
}

var _ queue.Job = (*RefillJob)(nil)
