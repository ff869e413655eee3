package analytics

import (
	"context"
	"fmt"
	"strings"

	"SignalDesk/internal/domain/models"
	domsvc "SignalDesk/internal/domain/service"
)

type HTTPPredictor struct{ base *HTTPServiceBase }

func NewHTTPPredictor(base *HTTPServiceBase) *HTTPPredictor { return &HTTPPredictor{base: base} }

type predictRequest struct {
	Symbol string    `json:"symbol"`
	Closes []float64 `json:"closes"`
}

type predictResponse struct {
	Trend      string  `json:"trend"`
	Confidence float64 `json:"confidence"`
}

// Predict sends the recent closes to the ML service. Confidence is reported
// on a 0-100 scale; answers in [0,1] are scaled up.
func (p *HTTPPredictor) Predict(ctx context.Context, symbol string, recentCloses []float64) (models.Prediction, error) {
	var pr predictResponse
	err := p.base.PostJSONWithRetry(ctx, "/predict", predictRequest{Symbol: symbol, Closes: recentCloses}, &pr)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("predict %s: %w", symbol, err)
	}

	var trend models.Trend
	switch strings.ToLower(pr.Trend) {
	case "up", "bullish":
		trend = models.TrendUp
	case "down", "bearish":
		trend = models.TrendDown
	case "neutral", "sideways":
		trend = models.TrendNeutral
	default:
		return models.Prediction{}, fmt.Errorf("predict %s: unknown trend %q", symbol, pr.Trend)
	}

	conf := pr.Confidence
	if conf > 0 && conf <= 1 {
		conf *= 100
	}
	return models.Prediction{Trend: trend, Confidence: clamp(conf, 0, 100)}, nil
}

var _ domsvc.Predictor = (*HTTPPredictor)(nil)
