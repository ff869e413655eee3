package usecase

import (
	"context"
	"errors"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	mid "SignalDesk/internal/middleware"
	"SignalDesk/pkg/logger"
)

// PriceCollector keeps a market stream connected and pushes its ticks
// through the pipeline.
type PriceCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	log     *logger.Logger
	backoff time.Duration
}

func NewPriceCollector(stream drepo.MarketStream, pipe *mid.RealtimePipeline, metrics drepo.Metrics, log *logger.Logger) *PriceCollector {
	return &PriceCollector{stream: stream, pipe: pipe, metrics: metrics, log: log, backoff: 5 * time.Second}
}

// IsConnected returns true if the market stream is connected.
func (c *PriceCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Run connects, subscribes and consumes until ctx ends. Stream failures
// trigger a reconnect; Run only returns on cancellation.
func (c *PriceCollector) Run(ctx context.Context) error {
	c.pipe.Start(ctx)
	defer c.pipe.Stop()
	defer c.stream.Close()

	connect := func() error {
		if err := c.stream.Connect(ctx); err != nil {
			return err
		}
		return c.stream.Subscribe(ctx)
	}
	err := connect()
	for {
		for err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.metrics.RecordError("stream_connect")
			c.log.Warn("collector.connect failed", logger.Error(err))
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			err = c.stream.Reconnect(ctx)
		}

		ticks, errs := c.stream.Read(ctx)
		err = c.consume(ctx, ticks, errs)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.RecordError("stream")
		c.log.Warn("collector.stream lost", logger.Error(err))
		err = c.stream.Reconnect(ctx)
	}
}

func (c *PriceCollector) consume(ctx context.Context, ticks <-chan models.Tick, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			errs = nil
		case t, ok := <-ticks:
			if !ok {
				return errStreamClosed
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.log.Debug("collector.tick rejected", logger.String("symbol", t.Symbol), logger.Error(err))
			}
		}
	}
}

var errStreamClosed = errors.New("market stream closed")
