package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"SignalDesk/internal/domain/models"
	domsvc "SignalDesk/internal/domain/service"
	"SignalDesk/pkg/cache"
)

// HTTPSentimentProvider asks the sentiment service for a news/social score.
// Answers are cached per symbol when a cache is configured.
type HTTPSentimentProvider struct {
	base  *HTTPServiceBase
	cache cache.Service
	ttl   time.Duration
}

func NewHTTPSentimentProvider(base *HTTPServiceBase, c cache.Service, ttl time.Duration) *HTTPSentimentProvider {
	return &HTTPSentimentProvider{base: base, cache: c, ttl: ttl}
}

type sentimentRequest struct {
	Symbol string `json:"symbol"`
}

type sentimentResponse struct {
	Score     *float64 `json:"score"`
	Magnitude *float64 `json:"magnitude"`
}

func (p *HTTPSentimentProvider) FetchSentiment(ctx context.Context, symbol string) (models.Sentiment, error) {
	key := cache.GenerateKey("sentiment", symbol)
	if p.cache != nil {
		var s models.Sentiment
		if err := p.cache.Get(ctx, key, &s); err == nil {
			return s, nil
		}
	}

	var sr sentimentResponse
	if err := p.base.PostJSONWithRetry(ctx, "/sentiment", sentimentRequest{Symbol: symbol}, &sr); err != nil {
		return models.Sentiment{}, fmt.Errorf("fetch sentiment %s: %w", symbol, err)
	}
	if sr.Score == nil {
		return models.Sentiment{}, fmt.Errorf("fetch sentiment %s: missing score", symbol)
	}

	out := models.Sentiment{Score: clamp(*sr.Score, -1, 1), Magnitude: 0.5}
	if sr.Magnitude != nil {
		out.Magnitude = clamp(*sr.Magnitude, 0, 1)
	}
	if p.cache != nil && p.ttl > 0 {
		_ = p.cache.Set(ctx, key, out, p.ttl)
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, v))
}

var _ domsvc.SentimentProvider = (*HTTPSentimentProvider)(nil)
