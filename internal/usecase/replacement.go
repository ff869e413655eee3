package usecase

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/logger"
)

// QualityThresholds define a high-quality signal. All three must hold.
type QualityThresholds struct {
	SuccessRate    float64
	DirectionScore float64
	RiskReward     float64
}

func DefaultThresholds() QualityThresholds {
	return QualityThresholds{SuccessRate: 75, DirectionScore: 70, RiskReward: 2.5}
}

func (q QualityThresholds) orDefault() QualityThresholds {
	d := DefaultThresholds()
	if q.SuccessRate <= 0 {
		q.SuccessRate = d.SuccessRate
	}
	if q.DirectionScore <= 0 {
		q.DirectionScore = d.DirectionScore
	}
	if q.RiskReward <= 0 {
		q.RiskReward = d.RiskReward
	}
	return q
}

func (q QualityThresholds) IsHighQuality(s models.Signal) bool {
	return s.SuccessRate >= q.SuccessRate &&
		s.DirectionScore >= q.DirectionScore &&
		s.RiskRewardRatio.InexactFloat64() >= q.RiskReward
}

// Proximity is the weighted distance-to-threshold used to rank signals that
// miss the high-quality bar. Higher is closer.
func (q QualityThresholds) Proximity(s models.Signal) float64 {
	return 0.5*(s.SuccessRate/q.SuccessRate) +
		0.3*(s.DirectionScore/q.DirectionScore) +
		0.2*(s.RiskRewardRatio.InexactFloat64()/q.RiskReward)
}

func bySuccessRateDesc(a, b models.Signal) int {
	return cmp.Compare(b.SuccessRate, a.SuccessRate)
}

// Select picks min(needed, len(candidates)) signals: high-quality ones by
// success rate first, then the rest by proximity. The result is ordered by
// success rate descending. candidates is not modified.
func Select(candidates []models.Signal, needed int, q QualityThresholds) []models.Signal {
	if needed <= 0 || len(candidates) == 0 {
		return nil
	}
	q = q.orDefault()

	var high, rest []models.Signal
	for _, c := range candidates {
		if q.IsHighQuality(c) {
			high = append(high, c)
		} else {
			rest = append(rest, c)
		}
	}
	slices.SortStableFunc(high, bySuccessRateDesc)

	if len(high) >= needed {
		return high[:needed]
	}

	slices.SortStableFunc(rest, func(a, b models.Signal) int {
		return cmp.Compare(q.Proximity(b), q.Proximity(a))
	})
	fill := min(needed-len(high), len(rest))

	out := make([]models.Signal, 0, len(high)+fill)
	out = append(out, high...)
	out = append(out, rest[:fill]...)
	slices.SortStableFunc(out, bySuccessRateDesc)
	return out
}

// CandidateProvider produces unsaved candidate signals for needed slots.
type CandidateProvider interface {
	Candidates(ctx context.Context, needed int, exclude map[string]struct{}) []models.Signal
}

// ReplacementResult reports one replacement run. Shortfall is how many of the
// needed slots stay empty.
type ReplacementResult struct {
	Needed      int
	Candidates  int
	HighQuality int
	Selected    []models.Signal
	Shortfall   int
}

// ReplacementEngine fills empty pool slots with the best available candidates.
type ReplacementEngine struct {
	candidates CandidateProvider
	store      repository.SignalStore
	events     *EventSink
	metrics    repository.Metrics
	log        *logger.Logger
	quality    QualityThresholds
}

func NewReplacementEngine(candidates CandidateProvider, store repository.SignalStore, events *EventSink, metrics repository.Metrics, log *logger.Logger, quality QualityThresholds) *ReplacementEngine {
	return &ReplacementEngine{
		candidates: candidates,
		store:      store,
		events:     events,
		metrics:    metrics,
		log:        log,
		quality:    quality.orDefault(),
	}
}

// Replace generates candidates, selects up to needed of them and inserts them
// as ACTIVE signals. Symbols in exclude are not considered. Running out of
// candidates is reported through Shortfall, not as an error; an error is
// returned only when the store rejected every insert.
func (r *ReplacementEngine) Replace(ctx context.Context, needed int, exclude map[string]struct{}) (ReplacementResult, error) {
	res := ReplacementResult{Needed: needed}
	if needed <= 0 {
		return res, nil
	}

	pool := r.candidates.Candidates(ctx, needed, exclude)
	res.Candidates = len(pool)
	for _, c := range pool {
		if r.quality.IsHighQuality(c) {
			res.HighQuality++
		}
	}

	picked := Select(pool, needed, r.quality)
	var lastErr error
	for i := range picked {
		s := picked[i]
		if err := r.store.Insert(ctx, &s); err != nil {
			lastErr = err
			r.metrics.RecordError("store_insert")
			r.log.Error("replacement.insert failed", logger.String("symbol", s.Symbol), logger.Error(err))
			continue
		}
		res.Selected = append(res.Selected, s)
		r.metrics.RecordSignalCreated(s.Symbol, s.Direction)
		r.events.Emit(ctx, models.SignalEvent{
			Type:       models.EventCreated,
			Signal:     s,
			OccurredAt: s.CreatedAt,
		})
	}
	res.Shortfall = needed - len(res.Selected)

	if res.Shortfall > 0 {
		r.log.Warn("replacement.shortfall pool below target",
			logger.Int("needed", needed),
			logger.Int("candidates", res.Candidates),
			logger.Int("selected", len(res.Selected)),
			logger.Int("shortfall", res.Shortfall))
	} else {
		r.log.Info("replacement.done",
			logger.Int("needed", needed),
			logger.Int("candidates", res.Candidates),
			logger.Int("high_quality", res.HighQuality))
	}

	if len(picked) > 0 && len(res.Selected) == 0 {
		return res, fmt.Errorf("insert replacements: %w", lastErr)
	}
	return res, nil
}
