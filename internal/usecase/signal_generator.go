package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/internal/domain/service"
	"SignalDesk/internal/services/features"
	"SignalDesk/internal/services/indicators"
	"SignalDesk/internal/services/scoring"
	"SignalDesk/pkg/logger"
)

const (
	DefaultHistoryBars = 250
	DefaultMinBars     = 30
	// predictorWindow is how many trailing closes the ML predictor sees.
	predictorWindow = 60
)

// GeneratorConfig tunes per-symbol evaluation.
type GeneratorConfig struct {
	HistoryBars int
	MinBars     int
	CallTimeout time.Duration
}

func (c *GeneratorConfig) normalize() {
	if c.HistoryBars <= 0 {
		c.HistoryBars = DefaultHistoryBars
	}
	if c.MinBars <= 0 {
		c.MinBars = DefaultMinBars
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
}

// Evaluation is the scored outcome for one symbol. Signal is nil when the
// levels were degenerate.
type Evaluation struct {
	Symbol     string
	Bars       int
	Indicators models.IndicatorSet
	Features   features.Snapshot
	Breakdown  models.ScoreBreakdown
	Signal     *models.Signal
}

// SignalGenerator runs the per-symbol pipeline: history, indicators, features,
// patterns, sentiment, prediction, scoring and level construction.
type SignalGenerator struct {
	history   repository.PriceHistory
	sentiment service.SentimentProvider
	predictor service.Predictor
	scorer    *scoring.Scorer
	factory   *SignalFactory
	metrics   repository.Metrics
	log       *logger.Logger
	cfg       GeneratorConfig
}

// NewSignalGenerator builds a generator. sentiment and predictor may be nil;
// neutral estimated defaults are used in their place.
func NewSignalGenerator(
	history repository.PriceHistory,
	sentiment service.SentimentProvider,
	predictor service.Predictor,
	metrics repository.Metrics,
	log *logger.Logger,
	cfg GeneratorConfig,
) *SignalGenerator {
	cfg.normalize()
	return &SignalGenerator{
		history:   history,
		sentiment: sentiment,
		predictor: predictor,
		scorer:    scoring.New(),
		factory:   NewSignalFactory(),
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
	}
}

// Generate evaluates symbol over the configured history depth and returns an
// unsaved ACTIVE signal.
func (g *SignalGenerator) Generate(ctx context.Context, symbol string) (*models.Signal, error) {
	ev, err := g.Evaluate(ctx, symbol, g.cfg.HistoryBars)
	if err != nil {
		return nil, err
	}
	return ev.Signal, nil
}

// Evaluate runs the pipeline over bars of history. A degenerate level set
// returns the evaluation together with ErrDegenerateLevels so callers can
// still show the breakdown.
func (g *SignalGenerator) Evaluate(ctx context.Context, symbol string, bars int) (*Evaluation, error) {
	start := time.Now()
	defer func() {
		g.metrics.RecordLatency("generate_signal", time.Since(start).Seconds())
	}()

	if bars <= 0 {
		bars = g.cfg.HistoryBars
	}

	hctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	series, err := g.history.FetchPriceHistory(hctx, symbol, bars)
	cancel()
	if err != nil {
		g.metrics.RecordError("history_unavailable")
		return nil, fmt.Errorf("fetch history %s: %w", symbol, err)
	}
	if len(series) < g.cfg.MinBars {
		return nil, fmt.Errorf("%s has %d bars, need %d: %w", symbol, len(series), g.cfg.MinBars, repository.ErrInsufficientHistory)
	}

	ev := &Evaluation{
		Symbol:     symbol,
		Bars:       len(series),
		Indicators: indicators.Compute(series),
		Features:   features.Extract(series, string(repository.DefaultTimeframe())),
	}
	patterns := indicators.DetectPatterns(series, indicators.AccuracyLookback, indicators.AccuracyHorizon)

	ev.Breakdown = g.scorer.Score(scoring.Input{
		Indicators: ev.Indicators,
		Features:   ev.Features,
		Sentiment:  g.fetchSentiment(ctx, symbol),
		Prediction: g.predict(ctx, symbol, series),
		Patterns:   patterns,
	})

	sig, err := g.factory.Build(symbol, ev.Features.CurrentPrice, ev.Indicators.ATR, ev.Features.Changes, ev.Breakdown)
	if err != nil {
		return ev, err
	}
	ev.Signal = sig
	return ev, nil
}

func (g *SignalGenerator) fetchSentiment(ctx context.Context, symbol string) models.Sentiment {
	if g.sentiment == nil {
		return models.NeutralSentiment()
	}
	sctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	s, err := g.sentiment.FetchSentiment(sctx, symbol)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			g.log.Debug("generator.sentiment unavailable", logger.String("symbol", symbol), logger.Error(err))
		}
		g.metrics.RecordError("sentiment_unavailable")
		return models.NeutralSentiment()
	}
	return s
}

func (g *SignalGenerator) predict(ctx context.Context, symbol string, series []models.PriceBar) models.Prediction {
	if g.predictor == nil {
		return models.NeutralPrediction()
	}
	tail := series
	if len(tail) > predictorWindow {
		tail = tail[len(tail)-predictorWindow:]
	}
	pctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	p, err := g.predictor.Predict(pctx, symbol, models.Closes(tail))
	if err != nil {
		g.log.Debug("generator.predict unavailable", logger.String("symbol", symbol), logger.Error(err))
		g.metrics.RecordError("predictor_unavailable")
		return models.NeutralPrediction()
	}
	return p
}
