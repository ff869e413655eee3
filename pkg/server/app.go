package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalDesk/internal/repository"
	"SignalDesk/internal/usecase"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	pkgkafka "SignalDesk/pkg/kafka"
	applogger "SignalDesk/pkg/logger"
	"SignalDesk/pkg/queue"

	"golang.org/x/sync/errgroup"
)

// App encapsulates the application lifecycle: the pool loop, the HTTP API and
// the optional queue, tick collector, ticks consumer and candle writer.
type App struct {
	cfg  *config.Config
	log  *applogger.Logger
	http *xhttp.Server
	pool *usecase.PoolManager

	queue       *queue.RedisQueue
	collector   *usecase.PriceCollector
	consumer    *pkgkafka.Consumer
	candles     *repository.CHCandleWriter
	candleEvery time.Duration
}

func New(cfg *config.Config, log *applogger.Logger, srv *xhttp.Server, pool *usecase.PoolManager) *App {
	return &App{cfg: cfg, log: log, http: srv, pool: pool}
}

func (a *App) WithQueue(q *queue.RedisQueue) { a.queue = q }

func (a *App) WithCollector(c *usecase.PriceCollector) { a.collector = c }

func (a *App) WithConsumer(c *pkgkafka.Consumer) { a.consumer = c }

func (a *App) WithCandleWriter(w *repository.CHCandleWriter, every time.Duration) {
	a.candles = w
	a.candleEvery = every
}

// Run starts every component and blocks until SIGINT/SIGTERM or until a
// component fails, then shuts down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run with a caller-owned context.
func (a *App) RunContext(ctx context.Context) error {
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
		a.log.Info("app.queue started")
	}
	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.stopQueue()
			return err
		}
		a.log.Info("app.consumer started", applogger.String("topic", a.cfg.Kafka.TicksTopic))
	}
	if err := a.http.Start(); err != nil {
		a.stopQueue()
		a.stopConsumer()
		return err
	}
	a.log.Info("app.http started", applogger.String("addr", a.http.Addr()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.pool.Run(gctx) })
	if a.collector != nil {
		g.Go(func() error {
			a.log.Info("app.collector started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
			return a.collector.Run(gctx)
		})
	}
	if a.candles != nil {
		g.Go(func() error { return a.candles.Run(gctx, a.candleEvery) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		a.log.Error("app.run component_failed", applogger.Error(err))
	}
	a.log.Info("app.shutdown started")
	a.shutdown()
	return err
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.stopConsumer()
	a.stopQueue()
	a.log.Info("app.shutdown complete")
}

func (a *App) stopQueue() {
	if a.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.queue.Stop(ctx); err != nil {
		a.log.Warn("queue stop error", applogger.Error(err))
	}
}

func (a *App) stopConsumer() {
	if a.consumer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.consumer.Stop(ctx); err != nil {
		a.log.Warn("kafka consumer stop error", applogger.Error(err))
	}
}
