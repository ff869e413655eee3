package usecase

import (
	"context"
	"errors"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/cache"
	"SignalDesk/pkg/logger"
)

// DefaultHistoryTTL bounds how stale cached bars may get. Staleness only affects
// recommendation freshness.
const DefaultHistoryTTL = time.Hour

// CachedPriceHistory is a read-through cache in front of a PriceHistory source.
type CachedPriceHistory struct {
	source repository.PriceHistory
	cache  cache.Service
	ttl    time.Duration
	log    *logger.Logger
}

func NewCachedPriceHistory(source repository.PriceHistory, c cache.Service, ttl time.Duration, log *logger.Logger) *CachedPriceHistory {
	if ttl <= 0 {
		ttl = DefaultHistoryTTL
	}
	return &CachedPriceHistory{source: source, cache: c, ttl: ttl, log: log}
}

func historyKey(symbol string, bars int) string {
	return cache.GenerateKeyWithParams("history", symbol, bars)
}

func (h *CachedPriceHistory) FetchPriceHistory(ctx context.Context, symbol string, bars int) ([]models.PriceBar, error) {
	key := historyKey(symbol, bars)

	var cached []models.PriceBar
	err := h.cache.Get(ctx, key, &cached)
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) && h.log != nil {
		h.log.Warn("history.cache get_failed", logger.String("symbol", symbol), logger.Error(err))
	}

	out, err := h.source.FetchPriceHistory(ctx, symbol, bars)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		if err := h.cache.Set(ctx, key, out, h.ttl); err != nil && h.log != nil {
			h.log.Warn("history.cache set_failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	return out, nil
}

// Invalidate drops cached history for symbol at the given depth.
func (h *CachedPriceHistory) Invalidate(ctx context.Context, symbol string, bars int) error {
	return h.cache.Delete(ctx, historyKey(symbol, bars))
}
