package usecase

import (
	"context"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/logger"
)

type PoolConfig struct {
	Target   int
	Interval time.Duration
}

// CycleResult reports one pool cycle.
type CycleResult struct {
	Tick        TickResult
	Active      int
	Replacement ReplacementResult
}

// PoolManager keeps the number of ACTIVE signals at Target: each cycle closes
// signals that hit target or stop and replaces them.
type PoolManager struct {
	store       repository.SignalStore
	lifecycle   *LifecycleManager
	replacement *ReplacementEngine
	metrics     repository.Metrics
	log         *logger.Logger
	cfg         PoolConfig

	// mu serializes cycles and manual refills within one process.
	mu sync.Mutex
}

func NewPoolManager(store repository.SignalStore, lifecycle *LifecycleManager, replacement *ReplacementEngine, metrics repository.Metrics, log *logger.Logger, cfg PoolConfig) *PoolManager {
	if cfg.Target <= 0 {
		cfg.Target = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &PoolManager{
		store:       store,
		lifecycle:   lifecycle,
		replacement: replacement,
		metrics:     metrics,
		log:         log,
		cfg:         cfg,
	}
}

// Target is the configured pool size.
func (p *PoolManager) Target() int { return p.cfg.Target }

func (p *PoolManager) activeSymbols(ctx context.Context) (int, map[string]struct{}, error) {
	status := models.StatusActive
	active, err := p.store.Query(ctx, &status)
	if err != nil {
		return 0, nil, err
	}
	exclude := make(map[string]struct{}, len(active))
	for _, s := range active {
		exclude[s.Symbol] = struct{}{}
	}
	return len(active), exclude, nil
}

// RunCycle ticks the lifecycle, then refills the pool up to Target.
// A failed replacement leaves existing ACTIVE signals untouched.
func (p *PoolManager) RunCycle(ctx context.Context) (CycleResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res CycleResult
	tick, err := p.lifecycle.Tick(ctx)
	if err != nil {
		return res, err
	}
	res.Tick = tick

	active, exclude, err := p.activeSymbols(ctx)
	if err != nil {
		p.metrics.RecordError("store_query")
		return res, err
	}
	res.Active = active
	p.metrics.RecordPoolSize(active, p.cfg.Target)

	needed := p.cfg.Target - active
	if needed <= 0 {
		return res, nil
	}

	rep, err := p.replacement.Replace(ctx, needed, exclude)
	res.Replacement = rep
	res.Active += len(rep.Selected)
	p.metrics.RecordPoolSize(res.Active, p.cfg.Target)
	if err != nil {
		return res, err
	}
	return res, nil
}

// Run cycles immediately and then on every Interval until ctx ends.
func (p *PoolManager) Run(ctx context.Context) error {
	p.log.Info("pool.run started",
		logger.Int("target", p.cfg.Target),
		logger.Duration("interval_ms", p.cfg.Interval))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			p.log.Info("pool.run stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *PoolManager) cycle(ctx context.Context) {
	start := time.Now()
	res, err := p.RunCycle(ctx)
	p.metrics.RecordLatency("pool_cycle", time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error("pool.cycle failed", logger.Error(err))
		}
		return
	}
	p.log.Debug("pool.cycle done",
		logger.Int("active", res.Active),
		logger.Int("closed", len(res.Tick.Closed)),
		logger.Int("added", len(res.Replacement.Selected)))
}

// Refill adds count new signals regardless of Target, skipping symbols that
// already have an ACTIVE signal.
func (p *PoolManager) Refill(ctx context.Context, count int) (ReplacementResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, exclude, err := p.activeSymbols(ctx)
	if err != nil {
		p.metrics.RecordError("store_query")
		return ReplacementResult{Needed: count}, err
	}
	return p.replacement.Replace(ctx, count, exclude)
}
