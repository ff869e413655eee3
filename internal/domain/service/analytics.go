package service

import (
	"context"

	"SignalDesk/internal/domain/models"
)

// SentimentProvider scores news/social sentiment for a symbol.
type SentimentProvider interface {
	FetchSentiment(ctx context.Context, symbol string) (models.Sentiment, error)
}

// Predictor forecasts the short-term trend from recent closes.
type Predictor interface {
	Predict(ctx context.Context, symbol string, recentCloses []float64) (models.Prediction, error)
}
