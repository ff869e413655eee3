package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMinCandidatePool = 50
	DefaultMaxBatches       = 3
	DefaultConcurrency      = 8
)

// Generator produces one unsaved signal for a symbol.
type Generator interface {
	Generate(ctx context.Context, symbol string) (*models.Signal, error)
}

type CandidateConfig struct {
	Universe    []string
	MinPool     int
	MaxBatches  int
	Concurrency int
	// Seed fixes the shuffle order. Zero seeds from the clock.
	Seed int64
}

// CandidateSource draws candidate signals from a shuffled symbol universe.
type CandidateSource struct {
	gen     Generator
	cfg     CandidateConfig
	log     *logger.Logger
	metrics repository.Metrics

	mu  sync.Mutex
	rng *rand.Rand

	capLogged atomic.Bool
}

func NewCandidateSource(gen Generator, cfg CandidateConfig, metrics repository.Metrics, log *logger.Logger) *CandidateSource {
	if cfg.MinPool <= 0 {
		cfg.MinPool = DefaultMinCandidatePool
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = DefaultMaxBatches
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &CandidateSource{
		gen:     gen,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// PoolTarget is the number of candidates sought for needed replacements.
func (c *CandidateSource) PoolTarget(needed int) int {
	return max(3*needed, c.cfg.MinPool)
}

// Candidates generates up to PoolTarget(needed) signals, at most one per
// symbol, skipping symbols in exclude. Each batch walks a fresh shuffle of the
// symbols not yet covered; symbols that failed may be retried in a later batch.
// Failures never abort the batch.
func (c *CandidateSource) Candidates(ctx context.Context, needed int, exclude map[string]struct{}) []models.Signal {
	target := c.PoolTarget(needed)
	if usable := c.usable(exclude); usable < target {
		c.metrics.RecordError("candidate_target_capped")
		if !c.capLogged.Swap(true) {
			c.log.Info("candidates.target capped_by_universe",
				logger.Int("target", target),
				logger.Int("usable_symbols", usable),
				logger.Int("universe", len(c.cfg.Universe)))
		}
	}
	have := make(map[string]struct{})
	var out []models.Signal

	for batch := 0; batch < c.cfg.MaxBatches && len(out) < target; batch++ {
		if ctx.Err() != nil {
			break
		}
		symbols := c.shuffled(exclude, have)
		if len(symbols) == 0 {
			break
		}
		if n := target - len(out); len(symbols) > n {
			symbols = symbols[:n]
		}

		got := c.runBatch(ctx, symbols)
		for _, s := range got {
			if _, dup := have[s.Symbol]; dup {
				continue
			}
			have[s.Symbol] = struct{}{}
			out = append(out, s)
		}
		c.log.Debug("candidates.batch done",
			logger.Int("batch", batch+1),
			logger.Int("tried", len(symbols)),
			logger.Int("produced", len(got)),
			logger.Int("total", len(out)),
			logger.Int("target", target))
	}
	return out
}

// usable counts distinct universe symbols not in exclude. With one candidate
// per symbol it bounds how many candidates a call can return.
func (c *CandidateSource) usable(exclude map[string]struct{}) int {
	seen := make(map[string]struct{}, len(c.cfg.Universe))
	for _, s := range c.cfg.Universe {
		if _, ok := exclude[s]; !ok {
			seen[s] = struct{}{}
		}
	}
	return len(seen)
}

func (c *CandidateSource) shuffled(exclude, have map[string]struct{}) []string {
	symbols := make([]string, 0, len(c.cfg.Universe))
	seen := make(map[string]struct{}, len(c.cfg.Universe))
	for _, s := range c.cfg.Universe {
		if _, ok := exclude[s]; ok {
			continue
		}
		if _, ok := have[s]; ok {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}

	c.mu.Lock()
	c.rng.Shuffle(len(symbols), func(i, j int) { symbols[i], symbols[j] = symbols[j], symbols[i] })
	c.mu.Unlock()
	return symbols
}

func (c *CandidateSource) runBatch(ctx context.Context, symbols []string) []models.Signal {
	results := make([]*models.Signal, len(symbols))

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			sig, err := c.gen.Generate(ctx, sym)
			if err != nil {
				c.logSkip(sym, err)
				return nil
			}
			results[i] = sig
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.Signal, 0, len(results))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (c *CandidateSource) logSkip(symbol string, err error) {
	kind := "generate_failed"
	switch {
	case errors.Is(err, repository.ErrInsufficientHistory):
		kind = "insufficient_history"
	case errors.Is(err, repository.ErrDegenerateLevels):
		kind = "degenerate_levels"
	case errors.Is(err, repository.ErrUnavailable):
		kind = "history_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = "timeout"
	}
	c.metrics.RecordError("candidate_" + kind)
	c.log.Debug("candidates.skip "+kind, logger.String("symbol", symbol), logger.Error(err))
}
