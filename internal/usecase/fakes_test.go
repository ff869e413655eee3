package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"

	"github.com/shopspring/decimal"
)

type priceMap struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func newPriceMap() *priceMap { return &priceMap{prices: map[string]decimal.Decimal{}} }

func (p *priceMap) set(symbol string, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = decimal.NewFromFloat(v)
}

func (p *priceMap) FetchCurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, repository.ErrUnavailable)
	}
	return v, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.SignalEvent
}

func (r *recordingPublisher) PublishSignalEvent(_ context.Context, ev models.SignalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) RecordEvent(ctx context.Context, ev models.SignalEvent) error {
	return r.PublishSignalEvent(ctx, ev)
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// candidate builds an unsaved signal with the given quality figures.
func candidate(symbol string, sr, ds, rr float64) models.Signal {
	return models.Signal{
		Symbol:          symbol,
		Direction:       models.DirectionBuy,
		EntryPrice:      decimal.NewFromInt(100),
		TargetPrice:     decimal.NewFromInt(106),
		StopLossPrice:   decimal.NewFromInt(98),
		Status:          models.StatusActive,
		SuccessRate:     sr,
		DirectionScore:  ds,
		RiskRewardRatio: decimal.NewFromFloat(rr),
		TimeframeClass:  models.TimeframeMedium,
		CreatedAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func buySignal(symbol string, entry, target, stop int64) *models.Signal {
	s := candidate(symbol, 80, 75, 3)
	s.EntryPrice = decimal.NewFromInt(entry)
	s.TargetPrice = decimal.NewFromInt(target)
	s.StopLossPrice = decimal.NewFromInt(stop)
	return &s
}

// fixedGenerator returns a preset signal per symbol or an error.
type fixedGenerator struct {
	mu      sync.Mutex
	signals map[string]models.Signal
	errs    map[string]error
	calls   map[string]int
}

func newFixedGenerator() *fixedGenerator {
	return &fixedGenerator{
		signals: map[string]models.Signal{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (g *fixedGenerator) Generate(_ context.Context, symbol string) (*models.Signal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[symbol]++
	if err, ok := g.errs[symbol]; ok {
		return nil, err
	}
	s, ok := g.signals[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, repository.ErrInsufficientHistory)
	}
	return &s, nil
}

func (g *fixedGenerator) callCount(symbol string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[symbol]
}
