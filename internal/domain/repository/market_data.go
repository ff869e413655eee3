package repository

import (
	"context"

	"SignalDesk/internal/domain/models"

	"github.com/shopspring/decimal"
)

// Timeframe represents bar resolution buckets.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

// PriceHistory provides ascending OHLCV history for a symbol.
// Implementations return ErrUnavailable when the source cannot answer.
type PriceHistory interface {
	FetchPriceHistory(ctx context.Context, symbol string, bars int) ([]models.PriceBar, error)
}

// CurrentPrice provides the latest traded price for a symbol.
// Implementations return ErrUnavailable instead of a fabricated value.
type CurrentPrice interface {
	FetchCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// TickSink accepts live ticks.
type TickSink interface {
	Update(t models.Tick)
}
