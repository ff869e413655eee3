package usecase

import (
	"context"
	"errors"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/cache"
	"SignalDesk/pkg/logger"

	"github.com/shopspring/decimal"
)

// Transition returns the status s moves to at price. Terminal statuses never
// change. Target is checked before stop.
func Transition(s models.Signal, price decimal.Decimal) models.Status {
	if s.Status.IsTerminal() {
		return s.Status
	}
	switch s.Direction {
	case models.DirectionBuy:
		if price.GreaterThanOrEqual(s.TargetPrice) {
			return models.StatusCompleted
		}
		if price.LessThanOrEqual(s.StopLossPrice) {
			return models.StatusCancelled
		}
	case models.DirectionSell:
		if price.LessThanOrEqual(s.TargetPrice) {
			return models.StatusCompleted
		}
		if price.GreaterThanOrEqual(s.StopLossPrice) {
			return models.StatusCancelled
		}
	}
	return s.Status
}

// Locker serializes work on a key across engine replicas. cache.Service
// satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

type LifecycleConfig struct {
	CallTimeout time.Duration
	LockTTL     time.Duration
}

// TickResult counts what one lifecycle pass did.
type TickResult struct {
	Checked          int
	Completed        int
	Cancelled        int
	PriceUnavailable int
	Conflicts        int
	Locked           int
	Closed           []models.Signal
}

// LifecycleManager re-evaluates ACTIVE signals against current prices.
type LifecycleManager struct {
	store   repository.SignalStore
	prices  repository.CurrentPrice
	events  *EventSink
	locker  Locker
	metrics repository.Metrics
	log     *logger.Logger
	cfg     LifecycleConfig
	now     func() time.Time
}

// NewLifecycleManager builds a manager. locker may be nil for single-replica runs.
func NewLifecycleManager(store repository.SignalStore, prices repository.CurrentPrice, events *EventSink, locker Locker, metrics repository.Metrics, log *logger.Logger, cfg LifecycleConfig) *LifecycleManager {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &LifecycleManager{
		store:   store,
		prices:  prices,
		events:  events,
		locker:  locker,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Tick checks every ACTIVE signal once. Only a failed store query is returned
// as an error; per-signal failures leave that signal ACTIVE.
func (m *LifecycleManager) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	start := time.Now()
	defer func() {
		m.metrics.RecordLatency("lifecycle_tick", time.Since(start).Seconds())
	}()

	active := models.StatusActive
	signals, err := m.store.Query(ctx, &active)
	if err != nil {
		m.metrics.RecordError("store_query")
		return res, err
	}

	for _, s := range signals {
		if ctx.Err() != nil {
			break
		}
		res.Checked++
		m.checkOne(ctx, s, &res)
	}

	if res.Completed+res.Cancelled > 0 || res.PriceUnavailable > 0 {
		m.log.Info("lifecycle.tick done",
			logger.Int("checked", res.Checked),
			logger.Int("completed", res.Completed),
			logger.Int("cancelled", res.Cancelled),
			logger.Int("price_unavailable", res.PriceUnavailable),
			logger.Int("conflicts", res.Conflicts))
	}
	return res, nil
}

func lockKey(id string) string {
	return cache.GenerateKey("lock:signal", id)
}

func (m *LifecycleManager) checkOne(ctx context.Context, s models.Signal, res *TickResult) {
	if m.locker != nil {
		key := lockKey(s.ID)
		token, err := m.locker.TryLock(ctx, key, m.cfg.LockTTL)
		if err != nil {
			// fail open: a broken lock backend must not freeze the pool
			m.log.Warn("lifecycle.lock failed", logger.String("signal_id", s.ID), logger.Error(err))
		} else if token == "" {
			res.Locked++
			return
		} else {
			defer func() {
				if err := m.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil && !errors.Is(err, cache.ErrLockNotHeld) {
					m.log.Warn("lifecycle.unlock failed", logger.String("signal_id", s.ID), logger.Error(err))
				}
			}()
		}
	}

	pctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	price, err := m.prices.FetchCurrentPrice(pctx, s.Symbol)
	cancel()
	if err != nil {
		res.PriceUnavailable++
		m.metrics.RecordError("price_unavailable")
		m.log.Debug("lifecycle.tick price_unavailable", logger.String("symbol", s.Symbol), logger.Error(err))
		return
	}
	f, _ := price.Float64()
	m.metrics.RecordLastPrice(s.Symbol, f)

	next := Transition(s, price)
	if next == s.Status {
		return
	}

	if err := m.store.UpdateStatus(ctx, s.ID, next); err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			res.Conflicts++
			m.log.Info("lifecycle.update conflict", logger.String("signal_id", s.ID), logger.Error(err))
			return
		}
		m.metrics.RecordError("store_update")
		m.log.Error("lifecycle.update failed", logger.String("signal_id", s.ID), logger.Error(err))
		return
	}

	closedAt := m.now().UTC()
	s.Status = next
	s.ClosedAt = &closedAt
	switch next {
	case models.StatusCompleted:
		res.Completed++
	case models.StatusCancelled:
		res.Cancelled++
	}
	res.Closed = append(res.Closed, s)
	m.metrics.RecordTransition(next)

	m.events.Emit(ctx, models.SignalEvent{
		Type:       models.EventForStatus(next),
		Signal:     s,
		Price:      &price,
		OccurredAt: closedAt,
	})
}
