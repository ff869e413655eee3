package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
)

// TickPublisher forwards ticks to a broker. *kafka.Producer satisfies it.
type TickPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// TickProcessor applies a live tick to the local price book and, when a
// topic is configured, republishes it for other engine replicas.
type TickProcessor struct {
	sink    drepo.TickSink
	pub     TickPublisher
	topic   string
	metrics drepo.Metrics
}

// NewTickProcessor accepts a nil pub or an empty topic to skip republishing.
func NewTickProcessor(sink drepo.TickSink, pub TickPublisher, topic string, metrics drepo.Metrics) *TickProcessor {
	return &TickProcessor{sink: sink, pub: pub, topic: topic, metrics: metrics}
}

func (p *TickProcessor) Process(ctx context.Context, t models.Tick) error {
	start := time.Now()
	p.sink.Update(t)
	p.metrics.RecordLastPrice(t.Symbol, t.Price)

	if p.pub == nil || p.topic == "" {
		return nil
	}
	err := p.pub.Publish(ctx, p.topic, []byte(t.Symbol), tickMessage{
		Symbol: t.Symbol,
		T:      t.Timestamp.UnixMilli(),
		C:      t.Price,
		V:      t.Volume,
	})
	if err != nil {
		p.metrics.RecordError("tick_publish")
		return fmt.Errorf("publish tick: %w", err)
	}
	p.metrics.RecordLatency("tick_process", time.Since(start).Seconds())
	return nil
}
